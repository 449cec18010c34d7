package csvio

import (
	"connectcore/internal/core"
	"connectcore/pkg/domain"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrTooFewRows is returned when the input has no data row after the header.
var ErrTooFewRows = errors.New("CSV file must have a header row and at least one data row.")

// Messages shown when an import cannot start.
const (
	FailedTitle  = "Import Failed"
	EmptyTitle   = "Import Warning"
	EmptyMessage = "The CSV file is empty or contains no valid data rows."
)

// MissingHeaderError names a required column absent from the header row.
type MissingHeaderError struct{ Header string }

func (e MissingHeaderError) Error() string {
	return fmt.Sprintf("Your CSV is missing the required header: %q", e.Header)
}

var requiredHeaders = map[core.View][]string{
	core.ViewConnects:     {"Title", "Startup Name", "Corporate Name", "Owner Email", "Status Name"},
	core.ViewLeads:        {"Name", "Owner Email", "Intent Level", "Need Type"},
	core.ViewStartups:     {"Name"},
	core.ViewCorporates:   {"Name"},
	core.ViewStakeholders: {"Name", "Email", "Affiliation"},
}

// RequiredHeaders returns the columns an import into view must carry.
func RequiredHeaders(v core.View) []string { return requiredHeaders[v] }

const idDisclaimer = "To update an existing record, include its ID in a column named 'Connect ID', 'Lead ID', 'Organization ID', or 'Stakeholder ID'. If the ID column is omitted or the ID is not found, a new record will be created."

// HeaderDisclaimer explains how referenced records are matched on import.
func HeaderDisclaimer(v core.View) string {
	switch v {
	case core.ViewConnects:
		return "Referenced Organizations (by name), Stakeholders (by email), and Statuses (by name) must exist. For multiple contacts, separate emails with a semicolon (;). " + idDisclaimer
	case core.ViewLeads:
		return "The owner of the lead (by 'Owner Email'), 'Intent Level' (by name), and 'Need Type' (by name) must exist in the system. For multiple 'Non-Revenue Value' tags, separate them with a semicolon (;). " + idDisclaimer
	case core.ViewStartups, core.ViewCorporates:
		return `"Name" must be unique for new records. For multiple contacts, separate emails with a semicolon (;). ` + idDisclaimer
	case core.ViewStakeholders:
		return `"Email" must be unique for new records. "Affiliation" must be one of: internal, startup, corporate. ` + idDisclaimer
	}
	return "This view does not support imports."
}

// Parser turns CSV input into import rows.
type Parser struct {
	// Now stamps connects whose Date column is empty. Defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

// Parse reads r with a default Parser.
func Parse(v core.View, r io.Reader, idx *core.Index) ([]core.ImportRow, error) {
	return Parser{}.Parse(v, r, idx)
}

// Parse validates the header row of r and resolves every data row against
// idx. Header names match case-insensitively and blank lines are skipped.
// References (organizations by name, stakeholders by email, taxonomy entries
// by name) that do not resolve are left out of the row's fields so the
// import reports them. Rows that cannot be read at all are skipped.
func (p Parser) Parse(v core.View, r io.Reader, idx *core.Index) ([]core.ImportRow, error) {
	required, ok := requiredHeaders[v]
	if !ok {
		return nil, UnsupportedViewError{View: v}
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrTooFewRows
	}

	columns := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, h := range required {
		if _, ok := columns[strings.ToLower(h)]; !ok {
			return nil, MissingHeaderError{Header: h}
		}
	}

	lk := newLookups(idx)
	var rows []core.ImportRow
	for _, values := range records[1:] {
		rec := record{columns: columns, values: values}
		if rec.blank() {
			continue
		}
		fields, err := lk.fields(v, rec, now)
		if err != nil {
			logger.Warn("skipping csv row", zap.String("view", string(v)), zap.Strings("values", values), zap.Error(err))
			continue
		}
		rows = append(rows, core.ImportRow{
			Number:     len(rows) + 2,
			ID:         rec.get("id"),
			Identifier: identifier(fields),
			Fields:     fields,
		})
	}
	return rows, nil
}

func identifier(fields core.Patch) string {
	for _, key := range []string{"name", "title"} {
		if s, _ := fields[key].(string); s != "" {
			return s
		}
	}
	return "N/A"
}

type record struct {
	columns map[string]int
	values  []string
}

var idColumns = []string{"connect id", "lead id", "organization id", "stakeholder id"}

// get returns the trimmed value of the named column, or "". The pseudo
// column "id" resolves to whichever record id column is present.
func (r record) get(name string) string {
	if name == "id" {
		for _, col := range idColumns {
			if val := r.get(col); val != "" {
				return val
			}
		}
		return ""
	}
	i, ok := r.columns[strings.ToLower(name)]
	if !ok || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

func (r record) blank() bool {
	for _, v := range r.values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// lookups indexes reference targets by their lowercase natural key. Active
// records win over trashed ones sharing a key.
type lookups struct {
	orgs         map[string]core.Organization
	stakeholders map[string]core.Stakeholder
	statuses     map[string]string
	intents      map[string]string
	needs        map[string]string
	tags         map[string]string
}

func newLookups(idx *core.Index) lookups {
	ds := idx.Dataset()
	lk := lookups{
		orgs:         make(map[string]core.Organization, len(ds.Organizations)),
		stakeholders: make(map[string]core.Stakeholder, len(ds.Stakeholders)),
		statuses:     make(map[string]string, len(ds.Statuses)),
		intents:      make(map[string]string, len(ds.IntentLevels)),
		needs:        make(map[string]string, len(ds.NeedTypes)),
		tags:         make(map[string]string, len(ds.NonRevenueTags)),
	}
	for _, o := range ds.Organizations {
		key := strings.ToLower(strings.TrimSpace(o.Name))
		if prev, ok := lk.orgs[key]; !ok || prev.Deleted() {
			lk.orgs[key] = o
		}
	}
	for _, s := range ds.Stakeholders {
		key := strings.ToLower(strings.TrimSpace(s.Email))
		if prev, ok := lk.stakeholders[key]; !ok || prev.Deleted() {
			lk.stakeholders[key] = s
		}
	}
	for _, s := range ds.Statuses {
		lk.statuses[strings.ToLower(s.Name)] = s.ID
	}
	for _, il := range ds.IntentLevels {
		lk.intents[strings.ToLower(il.Name)] = il.ID
	}
	for _, nt := range ds.NeedTypes {
		lk.needs[strings.ToLower(nt.Name)] = nt.ID
	}
	for _, t := range ds.NonRevenueTags {
		lk.tags[strings.ToLower(t.Name)] = t.ID
	}
	return lk
}

func (lk lookups) stakeholder(email string) (string, bool) {
	s, ok := lk.stakeholders[strings.ToLower(email)]
	return s.ID, ok && email != ""
}

func (lk lookups) org(name string) (string, bool) {
	o, ok := lk.orgs[strings.ToLower(name)]
	return o.ID, ok && name != ""
}

// stakeholderIDs resolves a semicolon separated email list, dropping unknown
// and repeated entries.
func (lk lookups) stakeholderIDs(list string) []string {
	ids := []string{}
	for _, email := range strings.Split(list, ";") {
		if id, ok := lk.stakeholder(strings.TrimSpace(email)); ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (lk lookups) tagIDs(list string) []string {
	ids := []string{}
	for _, name := range strings.Split(list, ";") {
		if id, ok := lk.tags[strings.ToLower(strings.TrimSpace(name))]; ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func setRef(fields core.Patch, key, id string, ok bool) {
	if ok {
		fields[key] = id
	}
}

func (lk lookups) fields(v core.View, rec record, now func() time.Time) (core.Patch, error) {
	fields := core.Patch{}
	switch v {
	case core.ViewStakeholders:
		fields["name"] = rec.get("Name")
		fields["email"] = rec.get("Email")
		fields["role"] = rec.get("Role")
		fields["phone"] = rec.get("Phone")
		if a := domain.ParseAffiliation(rec.get("Affiliation")); a != "" {
			fields["affiliation"] = a
		}
	case core.ViewStartups, core.ViewCorporates:
		fields["name"] = rec.get("Name")
		fields["type"] = v.OrgType()
		owner, _ := lk.stakeholder(rec.get("Owner Email"))
		fields["ownerId"] = owner
		fields["contactIds"] = lk.stakeholderIDs(rec.get("Contact Emails"))
	case core.ViewLeads:
		fields["name"] = rec.get("Name")
		orgType := domain.ParseOrgType(rec.get("Organization Type"))
		if orgType == "" {
			orgType = domain.OrgTypeStartup
		}
		fields["organizationType"] = orgType
		fields["source"] = rec.get("Source")
		id, ok := lk.intents[strings.ToLower(rec.get("Intent Level"))]
		setRef(fields, "intentLevelId", id, ok)
		id, ok = lk.needs[strings.ToLower(rec.get("Need Type"))]
		setRef(fields, "needTypeId", id, ok)
		revenue := rec.get("Revenue Potential (₹)")
		if revenue == "" {
			revenue = rec.get("Revenue Potential")
		}
		fields["revenuePotential"] = leadingFloat(revenue)
		fields["nonRevenueTagIds"] = lk.tagIDs(rec.get("Non-Revenue Value"))
		id, ok = lk.stakeholder(rec.get("Owner Email"))
		setRef(fields, "ownerId", id, ok)
		fields["comments"] = rec.get("Comments")
	case core.ViewConnects:
		fields["title"] = rec.get("Title")
		date := now().UTC()
		if raw := rec.get("Date"); raw != "" {
			parsed, err := parseDate(raw)
			if err != nil {
				return nil, err
			}
			date = parsed
		}
		fields["date"] = date
		id, ok := lk.org(rec.get("Startup Name"))
		setRef(fields, "startupId", id, ok)
		id, ok = lk.org(rec.get("Corporate Name"))
		setRef(fields, "corporateId", id, ok)
		id, ok = lk.stakeholder(rec.get("Owner Email"))
		setRef(fields, "ownerId", id, ok)
		id, ok = lk.statuses[strings.ToLower(rec.get("Status Name"))]
		setRef(fields, "statusId", id, ok)
		fields["startupContactIds"] = lk.stakeholderIDs(rec.get("Startup Contact Emails"))
		fields["corporateContactIds"] = lk.stakeholderIDs(rec.get("Corporate Contact Emails"))
	}
	return fields, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// leadingFloat parses the longest numeric prefix of s, yielding 0 when there
// is none. "1500 approx" reads as 1500.
func leadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return 0
			}
			return f
		}
	}
	return 0
}

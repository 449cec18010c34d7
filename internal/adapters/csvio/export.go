// Package csvio converts workspace records to and from the CSV layout used
// for bulk exchange, and publishes exports to artifact storage.
package csvio

import (
	"bytes"
	"connectcore/internal/core"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// isoMillis matches the timestamps written into the Date column.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// formatDate writes t in UTC with milliseconds, widening to nanoseconds when
// t carries sub-millisecond precision so an import restores it exactly.
func formatDate(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()%int(time.Millisecond) != 0 {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(isoMillis)
}

var (
	connectHeaders = []string{
		"Connect ID", "Title", "Date", "Status Name",
		"Owner Name", "Owner Email",
		"Startup Name", "Corporate Name",
		"Startup Contact Emails", "Corporate Contact Emails",
	}
	organizationHeaders = []string{"Organization ID", "Name", "Type", "Owner Email", "Contact Emails"}
	stakeholderHeaders  = []string{"Stakeholder ID", "Name", "Role", "Email", "Phone", "Affiliation"}
	leadHeaders         = []string{
		"Lead ID", "Name", "Organization Type", "Source", "Intent Level", "Need Type",
		"Revenue Potential (₹)", "Non-Revenue Value", "Owner Email", "Comments",
	}
)

// ExportableViews lists the views that can be written to CSV.
func ExportableViews() []core.View {
	return []core.View{core.ViewConnects, core.ViewLeads, core.ViewStartups, core.ViewCorporates, core.ViewStakeholders}
}

// Headers returns the column layout written for view, or nil when the view
// cannot be exported.
func Headers(v core.View) []string {
	switch v {
	case core.ViewConnects:
		return connectHeaders
	case core.ViewLeads:
		return leadHeaders
	case core.ViewStartups, core.ViewCorporates:
		return organizationHeaders
	case core.ViewStakeholders:
		return stakeholderHeaders
	}
	return nil
}

// UnsupportedViewError is returned for views without a CSV layout.
type UnsupportedViewError struct{ View core.View }

func (e UnsupportedViewError) Error() string {
	return fmt.Sprintf("csv exchange is not available for the %q view", e.View)
}

// Export renders items as CSV for view. References are resolved through idx;
// every field is quoted. Items of a kind the view does not list are ignored.
// An empty result yields no bytes at all, not even a header row.
func Export(v core.View, items []core.Item, idx *core.Index) ([]byte, error) {
	headers := Headers(v)
	if headers == nil {
		return nil, UnsupportedViewError{View: v}
	}
	var rows [][]string
	for _, it := range items {
		if row, ok := exportRow(v, it, idx); ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.WriteString(strings.Join(headers, ","))
	for _, row := range rows {
		buf.WriteByte('\n')
		for i, field := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(quote(field))
		}
	}
	return buf.Bytes(), nil
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

func exportRow(v core.View, it core.Item, idx *core.Index) ([]string, bool) {
	switch {
	case v == core.ViewConnects && it.Kind == core.KindConnect:
		c := it.Connect
		owner := idx.Stakeholders[c.OwnerID]
		return []string{
			c.ID, c.Title, formatDate(c.Date), idx.StatusName(c.StatusID),
			owner.Name, owner.Email,
			idx.OrganizationName(c.StartupID), idx.OrganizationName(c.CorporateID),
			contactEmails(idx, c.StartupContactIDs),
			contactEmails(idx, c.CorporateContactIDs),
		}, true
	case v == core.ViewLeads && it.Kind == core.KindLead:
		l := it.Lead
		var tags []string
		for _, id := range l.NonRevenueTagIDs {
			if name := idx.NonRevenueTags[id].Name; name != "" {
				tags = append(tags, name)
			}
		}
		return []string{
			l.ID, l.Name, string(l.OrganizationType), l.Source,
			idx.IntentLevels[l.IntentLevelID].Name, idx.NeedTypes[l.NeedTypeID].Name,
			strconv.FormatFloat(l.RevenuePotential, 'f', -1, 64),
			strings.Join(tags, ";"),
			idx.Stakeholders[l.OwnerID].Email, l.Comments,
		}, true
	case (v == core.ViewStartups || v == core.ViewCorporates) && it.Kind == core.KindOrganization:
		o := it.Organization
		return []string{o.ID, o.Name, string(o.Type), idx.Stakeholders[o.OwnerID].Email, contactEmails(idx, o.ContactIDs)}, true
	case v == core.ViewStakeholders && it.Kind == core.KindStakeholder:
		s := it.Stakeholder
		return []string{s.ID, s.Name, s.Role, s.Email, s.Phone, string(s.Affiliation)}, true
	}
	return nil, false
}

func contactEmails(idx *core.Index, ids []string) string {
	var emails []string
	for _, id := range ids {
		if email := idx.Stakeholders[id].Email; email != "" {
			emails = append(emails, email)
		}
	}
	return strings.Join(emails, ";")
}

// FileName names an export of view produced at now. Exports of a row
// selection are named apart from full-view exports.
func FileName(v core.View, selection bool, now time.Time) string {
	kind := "export"
	if selection {
		kind = "selection"
	}
	return fmt.Sprintf("%s_%s_%s.csv", v, kind, now.Format("2006-01-02"))
}

package core

import (
	"connectcore/pkg/domain"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// View names a list surface of the workspace.
type View string

// Views served by Query.
const (
	ViewConnects     View = "connects"
	ViewLeads        View = "leads"
	ViewStartups     View = "startups"
	ViewCorporates   View = "corporates"
	ViewStakeholders View = "stakeholders"
	ViewAdmin        View = "admin"
	ViewSuccess      View = "success"
	ViewTrash        View = "trash"
)

// Views lists every queryable view.
func Views() []View {
	return []View{ViewConnects, ViewLeads, ViewStartups, ViewCorporates, ViewStakeholders, ViewAdmin, ViewSuccess, ViewTrash}
}

// ParseView resolves a view name. Unknown names yield "".
func ParseView(name string) View {
	v := View(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Views() {
		if v == known {
			return v
		}
	}
	return ""
}

// Kind returns the record kind listed by the view, or "" for mixed views.
func (v View) Kind() Kind {
	switch v {
	case ViewConnects:
		return KindConnect
	case ViewLeads:
		return KindLead
	case ViewStartups, ViewCorporates:
		return KindOrganization
	case ViewStakeholders, ViewAdmin:
		return KindStakeholder
	case ViewSuccess:
		return KindSuccessStory
	}
	return ""
}

// OrgType returns the organization type listed by startup and corporate views.
func (v View) OrgType() domain.OrgType {
	switch v {
	case ViewStartups:
		return domain.OrgTypeStartup
	case ViewCorporates:
		return domain.OrgTypeCorporate
	}
	return ""
}

// SortDirection orders query results.
type SortDirection string

// Sort directions.
const (
	Ascending  SortDirection = "ascending"
	Descending SortDirection = "descending"
)

// SortConfig selects the sort key and direction. Keys are JSON field names or
// one of the resolved keys: startup.name, corporate.name, owner.name,
// status.name, intentLevel.name, needType.name, organization.name, connects,
// recordsLinked.
type SortConfig struct {
	Key       string        `json:"key"`
	Direction SortDirection `json:"direction"`
}

// Toggle returns the sort that results from selecting key: the same key flips
// direction and a new key starts ascending. A nil receiver behaves like a new key.
func (s *SortConfig) Toggle(key string) *SortConfig {
	if s == nil || s.Key != key {
		return &SortConfig{Key: key, Direction: Ascending}
	}
	next := Ascending
	if s.Direction == Ascending {
		next = Descending
	}
	return &SortConfig{Key: key, Direction: next}
}

// DefaultSort returns the sort applied when a view is opened.
func DefaultSort(v View) *SortConfig {
	switch v {
	case ViewConnects, ViewLeads:
		return &SortConfig{Key: "updatedAt", Direction: Descending}
	case ViewTrash, ViewSuccess:
		return nil
	}
	return &SortConfig{Key: "name", Direction: Ascending}
}

// Filters narrow the connects and leads views. An empty list disables that
// dimension; ids within one list are OR-ed.
type Filters struct {
	StatusIDs      []string `json:"statusIds,omitempty"`
	OwnerIDs       []string `json:"ownerIds,omitempty"`
	IntentLevelIDs []string `json:"intentLevelIds,omitempty"`
	NeedTypeIDs    []string `json:"needTypeIds,omitempty"`
}

// Count returns the number of active filter values.
func (f Filters) Count() int {
	return len(f.StatusIDs) + len(f.OwnerIDs) + len(f.IntentLevelIDs) + len(f.NeedTypeIDs)
}

// QueryRequest describes one list query.
type QueryRequest struct {
	View    View
	Search  string
	Filters Filters
	Sort    *SortConfig
}

// QueryResult carries the displayed items and the size of the view before
// search and filters were applied.
type QueryResult struct {
	Items []Item
	Total int
}

// Query selects, searches, filters and sorts the records of a view.
func Query(idx *Index, req QueryRequest) QueryResult {
	items := baseItems(idx, req.View)
	total := len(items)

	if q := strings.ToLower(req.Search); q != "" {
		items = filterItems(items, func(it Item) bool { return matchesSearch(idx, it, q) })
	}
	items = applyFilters(items, req.View, req.Filters)

	if req.Sort != nil && req.View != ViewTrash {
		sortItems(idx, items, *req.Sort)
	}
	return QueryResult{Items: items, Total: total}
}

func baseItems(idx *Index, v View) []Item {
	ds := idx.Dataset()
	var items []Item
	switch v {
	case ViewConnects:
		for _, c := range ds.Connects {
			if !c.Deleted() {
				items = append(items, ConnectItem(c))
			}
		}
	case ViewLeads:
		for _, l := range ds.Leads {
			if !l.Deleted() {
				items = append(items, LeadItem(l))
			}
		}
	case ViewStartups, ViewCorporates:
		for _, o := range ds.Organizations {
			if o.Type == v.OrgType() && !o.Deleted() {
				items = append(items, OrganizationItem(o))
			}
		}
	case ViewStakeholders, ViewAdmin:
		for _, s := range ds.Stakeholders {
			if !s.Deleted() {
				items = append(items, StakeholderItem(s))
			}
		}
	case ViewSuccess:
		for _, s := range ds.SuccessStories {
			items = append(items, SuccessStoryItem(s))
		}
	case ViewTrash:
		items = TrashItems(ds)
	}
	return items
}

// TrashItems returns every soft-deleted connect, lead, organization and
// stakeholder, most recently deleted first.
func TrashItems(ds Dataset) []Item {
	var items []Item
	for _, c := range ds.Connects {
		if c.Deleted() {
			items = append(items, ConnectItem(c))
		}
	}
	for _, l := range ds.Leads {
		if l.Deleted() {
			items = append(items, LeadItem(l))
		}
	}
	for _, o := range ds.Organizations {
		if o.Deleted() {
			items = append(items, OrganizationItem(o))
		}
	}
	for _, s := range ds.Stakeholders {
		if s.Deleted() {
			items = append(items, StakeholderItem(s))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Trashable().DeletedAt.After(*items[j].Trashable().DeletedAt)
	})
	return items
}

func filterItems(items []Item, keep func(Item) bool) []Item {
	out := items[:0:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func containsFold(field, lowerQuery string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), lowerQuery)
}

func matchesSearch(idx *Index, it Item, q string) bool {
	switch it.Kind {
	case KindConnect, KindSuccessStory:
		if containsFold(it.Name(), q) {
			return true
		}
		var connect Connect
		var ok bool
		if it.Kind == KindConnect {
			connect, ok = *it.Connect, true
		} else {
			connect, ok = idx.Connects[it.SuccessStory.ConnectID]
		}
		if !ok {
			return false
		}
		return containsFold(idx.OrganizationName(connect.StartupID), q) ||
			containsFold(idx.OrganizationName(connect.CorporateID), q) ||
			containsFold(idx.StakeholderName(connect.OwnerID), q)
	case KindOrganization:
		return containsFold(it.Organization.Name, q)
	case KindStakeholder:
		s := it.Stakeholder
		return containsFold(s.Name, q) ||
			containsFold(s.Role, q) ||
			containsFold(s.Email, q) ||
			containsFold(idx.StakeholderOrg[s.ID], q)
	case KindLead:
		l := it.Lead
		return containsFold(l.Name, q) ||
			containsFold(l.Source, q) ||
			containsFold(idx.IntentLevels[l.IntentLevelID].Name, q) ||
			containsFold(idx.NeedTypes[l.NeedTypeID].Name, q)
	}
	return false
}

func idSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, id string) bool {
	if set == nil {
		return true
	}
	_, ok := set[id]
	return ok
}

func applyFilters(items []Item, v View, f Filters) []Item {
	switch v {
	case ViewConnects:
		statuses, owners := idSet(f.StatusIDs), idSet(f.OwnerIDs)
		if statuses == nil && owners == nil {
			return items
		}
		return filterItems(items, func(it Item) bool {
			return inSet(statuses, it.Connect.StatusID) && inSet(owners, it.Connect.OwnerID)
		})
	case ViewLeads:
		owners, intents, needs := idSet(f.OwnerIDs), idSet(f.IntentLevelIDs), idSet(f.NeedTypeIDs)
		if owners == nil && intents == nil && needs == nil {
			return items
		}
		return filterItems(items, func(it Item) bool {
			l := it.Lead
			return inSet(owners, l.OwnerID) && inSet(intents, l.IntentLevelID) && inSet(needs, l.NeedTypeID)
		})
	}
	return items
}

func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.Numeric)
}

// sortItems orders items in place. Sort values are resolved once per item.
func sortItems(idx *Index, items []Item, cfg SortConfig) {
	keys := make([]any, len(items))
	for i, it := range items {
		keys[i] = sortValue(idx, it, cfg.Key)
	}
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	col := newCollator()
	sort.SliceStable(order, func(a, b int) bool {
		cmp := compareValues(col, keys[order[a]], keys[order[b]])
		if cfg.Direction == Descending {
			cmp = -cmp
		}
		return cmp < 0
	})
	sorted := make([]Item, len(items))
	for i, pos := range order {
		sorted[i] = items[pos]
	}
	copy(items, sorted)
}

func sortValue(idx *Index, it Item, key string) any {
	switch key {
	case "startup.name":
		if it.Connect != nil {
			return idx.OrganizationName(it.Connect.StartupID)
		}
		return ""
	case "corporate.name":
		if it.Connect != nil {
			return idx.OrganizationName(it.Connect.CorporateID)
		}
		return ""
	case "owner.name":
		return idx.StakeholderName(ownerOf(it))
	case "status.name":
		if it.Connect != nil {
			return idx.StatusName(it.Connect.StatusID)
		}
		return ""
	case "intentLevel.name":
		if it.Lead != nil {
			return idx.IntentLevels[it.Lead.IntentLevelID].Name
		}
		return ""
	case "needType.name":
		if it.Lead != nil {
			return idx.NeedTypes[it.Lead.NeedTypeID].Name
		}
		return ""
	case "organization.name":
		return idx.StakeholderOrg[it.ID()]
	case "connects":
		return float64(idx.OrganizationRefs[it.ID()])
	case "recordsLinked":
		return float64(idx.StakeholderRefs[it.ID()])
	case "createdAt", "updatedAt", "date":
		if t, ok := timeField(it, key); ok {
			return t
		}
		return ""
	}
	return fieldValue(it, key)
}

func timeField(it Item, key string) (time.Time, bool) {
	var base *Base
	switch it.Kind {
	case KindConnect:
		if key == "date" {
			return it.Connect.Date, true
		}
		base = &it.Connect.Base
	case KindLead:
		base = &it.Lead.Base
	case KindOrganization:
		base = &it.Organization.Base
	case KindStakeholder:
		base = &it.Stakeholder.Base
	case KindSuccessStory:
		base = &it.SuccessStory.Base
	}
	if base == nil || key == "date" {
		return time.Time{}, false
	}
	if key == "createdAt" {
		return base.CreatedAt, true
	}
	return base.UpdatedAt, true
}

func ownerOf(it Item) string {
	switch it.Kind {
	case KindConnect:
		return it.Connect.OwnerID
	case KindLead:
		return it.Lead.OwnerID
	case KindOrganization:
		return it.Organization.OwnerID
	}
	return ""
}

// fieldValue reads a dotted JSON path from the wrapped record. Missing values
// resolve to "".
func fieldValue(it Item, path string) any {
	var record any
	switch it.Kind {
	case KindConnect:
		record = it.Connect
	case KindLead:
		record = it.Lead
	case KindOrganization:
		record = it.Organization
	case KindStakeholder:
		record = it.Stakeholder
	case KindSuccessStory:
		record = it.SuccessStory
	default:
		return ""
	}
	fields, err := domain.Encode(record)
	if err != nil {
		return ""
	}
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return ""
		}
	}
	return cur
}

func compareValues(col *collate.Collator, a, b any) int {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return col.CompareString(sa, sb)
		}
	}
	switch va := a.(type) {
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	case float64:
		if vb, ok := b.(float64); ok {
			return compareOrdered(va, vb)
		}
	case bool:
		if vb, ok := b.(bool); ok && va != vb {
			if vb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func compareOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

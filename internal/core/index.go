package core

import (
	"connectcore/pkg/domain"
	"sort"
	"strings"
)

// Index holds the lookup maps and usage counters derived from a Dataset.
// It is rebuilt from scratch on every change and never mutated afterwards.
type Index struct {
	data Dataset

	Connects       map[string]Connect
	Leads          map[string]Lead
	Organizations  map[string]Organization
	Stakeholders   map[string]Stakeholder
	Statuses       map[string]Status
	Activities     map[string]Activity
	SuccessStories map[string]SuccessStory
	IntentLevels   map[string]IntentLevel
	NeedTypes      map[string]NeedType
	NonRevenueTags map[string]NonRevenueTag

	// ActivitiesByConnect and ActivitiesByLead are sorted by date, most recent first.
	ActivitiesByConnect map[string][]Activity
	ActivitiesByLead    map[string][]Activity
	StoryByConnect      map[string]SuccessStory
	// StakeholderOrg maps a stakeholder id to the name of the organization
	// listing it as a contact.
	StakeholderOrg map[string]string

	OrganizationRefs map[string]int
	StakeholderRefs  map[string]int
	StatusRefs       map[string]int
	IntentLevelRefs  map[string]int
	NeedTypeRefs     map[string]int
}

// BuildIndex derives the lookup maps and usage counts for ds.
func BuildIndex(ds Dataset) *Index {
	idx := &Index{
		data:                ds,
		Connects:            make(map[string]Connect, len(ds.Connects)),
		Leads:               make(map[string]Lead, len(ds.Leads)),
		Organizations:       make(map[string]Organization, len(ds.Organizations)),
		Stakeholders:        make(map[string]Stakeholder, len(ds.Stakeholders)),
		Statuses:            make(map[string]Status, len(ds.Statuses)),
		Activities:          make(map[string]Activity, len(ds.Activities)),
		SuccessStories:      make(map[string]SuccessStory, len(ds.SuccessStories)),
		IntentLevels:        make(map[string]IntentLevel, len(ds.IntentLevels)),
		NeedTypes:           make(map[string]NeedType, len(ds.NeedTypes)),
		NonRevenueTags:      make(map[string]NonRevenueTag, len(ds.NonRevenueTags)),
		ActivitiesByConnect: make(map[string][]Activity),
		ActivitiesByLead:    make(map[string][]Activity),
		StoryByConnect:      make(map[string]SuccessStory, len(ds.SuccessStories)),
		StakeholderOrg:      make(map[string]string),
		OrganizationRefs:    make(map[string]int),
		StakeholderRefs:     make(map[string]int),
		StatusRefs:          make(map[string]int),
		IntentLevelRefs:     make(map[string]int),
		NeedTypeRefs:        make(map[string]int),
	}
	for _, c := range ds.Connects {
		idx.Connects[c.ID] = c
	}
	for _, l := range ds.Leads {
		idx.Leads[l.ID] = l
	}
	for _, o := range ds.Organizations {
		idx.Organizations[o.ID] = o
		for _, contactID := range o.ContactIDs {
			idx.StakeholderOrg[contactID] = o.Name
		}
	}
	for _, s := range ds.Stakeholders {
		idx.Stakeholders[s.ID] = s
	}
	for _, s := range ds.Statuses {
		idx.Statuses[s.ID] = s
	}
	for _, i := range ds.IntentLevels {
		idx.IntentLevels[i.ID] = i
	}
	for _, n := range ds.NeedTypes {
		idx.NeedTypes[n.ID] = n
	}
	for _, t := range ds.NonRevenueTags {
		idx.NonRevenueTags[t.ID] = t
	}
	for _, s := range ds.SuccessStories {
		idx.SuccessStories[s.ID] = s
		idx.StoryByConnect[s.ConnectID] = s
	}
	for _, a := range ds.Activities {
		idx.Activities[a.ID] = a
		if a.ConnectID != "" {
			idx.ActivitiesByConnect[a.ConnectID] = append(idx.ActivitiesByConnect[a.ConnectID], a)
		}
		if a.LeadID != "" {
			idx.ActivitiesByLead[a.LeadID] = append(idx.ActivitiesByLead[a.LeadID], a)
		}
	}
	for _, group := range idx.ActivitiesByConnect {
		sortByDateDesc(group)
	}
	for _, group := range idx.ActivitiesByLead {
		sortByDateDesc(group)
	}
	idx.countUsage()
	return idx
}

func sortByDateDesc(activities []Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Date.After(activities[j].Date)
	})
}

// countUsage fills the reference counters from active records. Stakeholder
// references count distinct (record, role) pairs.
func (idx *Index) countUsage() {
	ds := idx.data
	refs := func(ids ...[]string) map[string]struct{} {
		set := make(map[string]struct{})
		for _, list := range ids {
			for _, id := range list {
				if id != "" {
					set[id] = struct{}{}
				}
			}
		}
		return set
	}
	bump := func(counter map[string]int, set map[string]struct{}) {
		for id := range set {
			counter[id]++
		}
	}
	for _, c := range ds.Connects {
		if c.Deleted() {
			continue
		}
		bump(idx.OrganizationRefs, refs([]string{c.StartupID, c.CorporateID}))
		bump(idx.StakeholderRefs, refs([]string{c.OwnerID}))
		bump(idx.StakeholderRefs, refs(c.StartupContactIDs))
		bump(idx.StakeholderRefs, refs(c.CorporateContactIDs))
		bump(idx.StatusRefs, refs([]string{c.StatusID}))
	}
	for _, o := range ds.Organizations {
		if o.Deleted() {
			continue
		}
		bump(idx.StakeholderRefs, refs([]string{o.OwnerID}))
		bump(idx.StakeholderRefs, refs(o.ContactIDs))
	}
	for _, a := range ds.Activities {
		bump(idx.StakeholderRefs, refs([]string{a.AuthorID}, a.Participants))
	}
	for _, l := range ds.Leads {
		if l.Deleted() {
			continue
		}
		bump(idx.IntentLevelRefs, refs([]string{l.IntentLevelID}))
		bump(idx.NeedTypeRefs, refs([]string{l.NeedTypeID}))
	}
}

// Dataset returns the snapshot the index was built from.
func (idx *Index) Dataset() Dataset { return idx.data }

// InternalStakeholders lists active internal staff sorted by name.
func (idx *Index) InternalStakeholders() []Stakeholder {
	var out []Stakeholder
	for _, s := range idx.data.Stakeholders {
		if s.Affiliation == domain.AffiliationInternal && !s.Deleted() {
			out = append(out, s)
		}
	}
	col := newCollator()
	sort.SliceStable(out, func(i, j int) bool { return col.CompareString(out[i].Name, out[j].Name) < 0 })
	return out
}

// StakeholderByEmail finds a stakeholder by email, ignoring case.
func (idx *Index) StakeholderByEmail(email string) (Stakeholder, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Stakeholder{}, false
	}
	for _, s := range idx.data.Stakeholders {
		if strings.EqualFold(s.Email, email) {
			return s, true
		}
	}
	return Stakeholder{}, false
}

// OrganizationContacts returns the contact ids listed on an organization.
func (idx *Index) OrganizationContacts(orgID string) []string {
	return idx.Organizations[orgID].ContactIDs
}

// StakeholderName resolves a stakeholder id to its name, or "" when missing.
func (idx *Index) StakeholderName(id string) string { return idx.Stakeholders[id].Name }

// OrganizationName resolves an organization id to its name, or "" when missing.
func (idx *Index) OrganizationName(id string) string { return idx.Organizations[id].Name }

// StatusName resolves a status id to its name, or "" when missing.
func (idx *Index) StatusName(id string) string { return idx.Statuses[id].Name }

package core

import (
	"connectcore/pkg/domain"
	"sort"
)

// Dataset is an immutable snapshot of every collection held by the workspace.
// Connects, leads and activities are ordered by updatedAt descending.
type Dataset struct {
	Connects       []Connect
	Leads          []Lead
	Organizations  []Organization
	Stakeholders   []Stakeholder
	Statuses       []Status
	Activities     []Activity
	SuccessStories []SuccessStory
	IntentLevels   []IntentLevel
	NeedTypes      []NeedType
	NonRevenueTags []NonRevenueTag
	UserSettings   []UserSettings
}

// DatasetFromDocuments decodes raw collections into a Dataset. Malformed
// documents are skipped.
func DatasetFromDocuments(docs map[Collection][]Document) Dataset {
	var ds Dataset
	for c, list := range docs {
		ds = ds.withCollection(c, list)
	}
	return ds
}

// withCollection returns a copy of ds with collection c replaced by docs.
func (ds Dataset) withCollection(c Collection, docs []Document) Dataset {
	switch c {
	case domain.CollectionConnects:
		ds.Connects = domain.DecodeAll[Connect](docs)
		sort.SliceStable(ds.Connects, func(i, j int) bool {
			return ds.Connects[i].UpdatedAt.After(ds.Connects[j].UpdatedAt)
		})
	case domain.CollectionLeads:
		ds.Leads = domain.DecodeAll[Lead](docs)
		sort.SliceStable(ds.Leads, func(i, j int) bool {
			return ds.Leads[i].UpdatedAt.After(ds.Leads[j].UpdatedAt)
		})
	case domain.CollectionActivities:
		ds.Activities = domain.DecodeAll[Activity](docs)
		sort.SliceStable(ds.Activities, func(i, j int) bool {
			return ds.Activities[i].UpdatedAt.After(ds.Activities[j].UpdatedAt)
		})
	case domain.CollectionOrganizations:
		ds.Organizations = domain.DecodeAll[Organization](docs)
	case domain.CollectionStakeholders:
		ds.Stakeholders = domain.DecodeAll[Stakeholder](docs)
	case domain.CollectionStatuses:
		ds.Statuses = domain.DecodeAll[Status](docs)
	case domain.CollectionSuccessStories:
		ds.SuccessStories = domain.DecodeAll[SuccessStory](docs)
	case domain.CollectionIntentLevels:
		ds.IntentLevels = domain.DecodeAll[IntentLevel](docs)
	case domain.CollectionNeedTypes:
		ds.NeedTypes = domain.DecodeAll[NeedType](docs)
	case domain.CollectionNonRevenueTags:
		ds.NonRevenueTags = domain.DecodeAll[NonRevenueTag](docs)
	case domain.CollectionUserSettings:
		ds.UserSettings = domain.DecodeAll[UserSettings](docs)
	}
	return ds
}

// Item is the tagged union handled by the query engine. Exactly one pointer
// matching Kind is populated.
type Item struct {
	Kind         Kind
	Connect      *Connect
	Lead         *Lead
	Organization *Organization
	Stakeholder  *Stakeholder
	SuccessStory *SuccessStory
}

// ID returns the id of the wrapped record.
func (it Item) ID() string {
	switch it.Kind {
	case KindConnect:
		return it.Connect.ID
	case KindLead:
		return it.Lead.ID
	case KindOrganization:
		return it.Organization.ID
	case KindStakeholder:
		return it.Stakeholder.ID
	case KindSuccessStory:
		return it.SuccessStory.ID
	}
	return ""
}

// Name returns the display name or title of the wrapped record.
func (it Item) Name() string {
	switch it.Kind {
	case KindConnect:
		return it.Connect.Title
	case KindLead:
		return it.Lead.Name
	case KindOrganization:
		return it.Organization.Name
	case KindStakeholder:
		return it.Stakeholder.Name
	case KindSuccessStory:
		return it.SuccessStory.Title
	}
	return ""
}

// Trashable returns the soft-delete marker, or nil for kinds without one.
func (it Item) Trashable() *Trashable {
	switch it.Kind {
	case KindConnect:
		return &it.Connect.Trashable
	case KindLead:
		return &it.Lead.Trashable
	case KindOrganization:
		return &it.Organization.Trashable
	case KindStakeholder:
		return &it.Stakeholder.Trashable
	}
	return nil
}

// ConnectItem wraps a connect.
func ConnectItem(c Connect) Item { return Item{Kind: KindConnect, Connect: &c} }

// LeadItem wraps a lead.
func LeadItem(l Lead) Item { return Item{Kind: KindLead, Lead: &l} }

// OrganizationItem wraps an organization.
func OrganizationItem(o Organization) Item { return Item{Kind: KindOrganization, Organization: &o} }

// StakeholderItem wraps a stakeholder.
func StakeholderItem(s Stakeholder) Item { return Item{Kind: KindStakeholder, Stakeholder: &s} }

// SuccessStoryItem wraps a success story.
func SuccessStoryItem(s SuccessStory) Item { return Item{Kind: KindSuccessStory, SuccessStory: &s} }

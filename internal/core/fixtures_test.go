package core

import (
	"connectcore/pkg/domain"
	"time"
)

var fixtureEpoch = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func days(n int) time.Time { return fixtureEpoch.AddDate(0, 0, n) }

func deletedAt(t time.Time) Trashable { return Trashable{DeletedAt: &t} }

func base(id string, created, updated time.Time) Base {
	return Base{ID: id, CreatedAt: created, UpdatedAt: updated}
}

// fixtureDataset is a small workspace: two startups, two corporates, four
// stakeholders, three connects (one trashed), two leads and activities.
func fixtureDataset() Dataset {
	return Dataset{
		Statuses: []Status{
			{ID: "st-new", Name: "New"},
			{ID: "st-prog", Name: "In Progress"},
			{ID: "st-nosyn", Name: "No Synergy"},
		},
		IntentLevels: []IntentLevel{{ID: "il-hot", Name: "Hot"}, {ID: "il-cold", Name: "Cold"}},
		NeedTypes:    []NeedType{{ID: "nt-pilot", Name: "Pilot"}, {ID: "nt-invest", Name: "Investment"}},
		Stakeholders: []Stakeholder{
			{Base: base("sh-ana", days(-30), days(-30)), Name: "Ana Owner", Email: "ana@connect.io", Role: "Partner", Affiliation: domain.AffiliationInternal},
			{Base: base("sh-bo", days(-30), days(-30)), Name: "Bo Builder", Email: "bo@rocket.io", Role: "CEO", Affiliation: domain.AffiliationStartup},
			{Base: base("sh-cy", days(-30), days(-30)), Name: "Cy Corp", Email: "cy@mega.com", Role: "Head of Innovation", Affiliation: domain.AffiliationCorporate},
			{Base: base("sh-zed", days(-30), days(-30)), Name: "Zed Internal", Email: "zed@connect.io", Affiliation: domain.AffiliationInternal},
			{Base: base("sh-gone", days(-30), days(-2)), Trashable: deletedAt(days(-2)), Name: "Gone Person", Email: "gone@x.io", Affiliation: domain.AffiliationStartup},
		},
		Organizations: []Organization{
			{Base: base("org-rocket", days(-20), days(-20)), Name: "Rocket Labs", Type: domain.OrgTypeStartup, OwnerID: "sh-ana", ContactIDs: []string{"sh-bo"}},
			{Base: base("org-acme", days(-20), days(-20)), Name: "Acme 10", Type: domain.OrgTypeStartup, ContactIDs: []string{}},
			{Base: base("org-mega", days(-20), days(-20)), Name: "MegaCorp", Type: domain.OrgTypeCorporate, OwnerID: "sh-zed", ContactIDs: []string{"sh-cy"}},
			{Base: base("org-old", days(-20), days(-1)), Trashable: deletedAt(days(-1)), Name: "Old Corp", Type: domain.OrgTypeCorporate, ContactIDs: []string{}},
		},
		Connects: []Connect{
			{Base: base("c-1", days(-10), days(-1)), Title: "Rocket x Mega pilot", StartupID: "org-rocket", CorporateID: "org-mega", OwnerID: "sh-ana", StatusID: "st-new", Date: days(-10), StartupContactIDs: []string{"sh-bo"}, CorporateContactIDs: []string{"sh-cy"}},
			{Base: base("c-2", days(-40), days(-3)), Title: "Acme scouting", StartupID: "org-acme", CorporateID: "org-mega", OwnerID: "sh-zed", StatusID: "st-prog", Date: days(-40), StartupContactIDs: []string{}, CorporateContactIDs: []string{"sh-cy"}},
			{Base: base("c-3", days(-50), days(-5)), Trashable: deletedAt(days(-5)), Title: "Dead deal", StartupID: "org-rocket", CorporateID: "org-mega", OwnerID: "sh-ana", StatusID: "st-nosyn", Date: days(-50), StartupContactIDs: []string{}, CorporateContactIDs: []string{}},
		},
		Leads: []Lead{
			{Base: base("l-1", days(-6), days(-2)), Name: "Nova Bio", OrganizationType: domain.OrgTypeStartup, Source: "Web", IntentLevelID: "il-hot", NeedTypeID: "nt-pilot", RevenuePotential: 5000, OwnerID: "sh-ana"},
			{Base: base("l-2", days(-70), days(-4)), Name: "Helix Insurance", OrganizationType: domain.OrgTypeCorporate, Source: "Referral", IntentLevelID: "il-cold", NeedTypeID: "nt-invest", RevenuePotential: 1500, OwnerID: "sh-zed"},
			{Base: base("l-3", days(-3), days(-3)), Trashable: deletedAt(days(-3)), Name: "Trashed Lead", OrganizationType: domain.OrgTypeStartup, IntentLevelID: "il-hot", NeedTypeID: "nt-pilot", RevenuePotential: 99, OwnerID: "sh-ana"},
		},
		Activities: []Activity{
			{Base: base("a-1", days(-9), days(-9)), ConnectID: "c-1", Type: domain.ActivityMeeting, Date: days(-9), Title: "Kickoff", Participants: []string{"sh-bo", "sh-cy"}, AuthorID: "sh-ana"},
			{Base: base("a-2", days(-4), days(-4)), ConnectID: "c-1", Type: domain.ActivityCall, Date: days(-4), Title: "Follow-up", Participants: []string{"sh-bo"}, AuthorID: "sh-bo"},
			{Base: base("a-3", days(-1), days(-1)), LeadID: "l-1", Type: domain.ActivityEmail, Date: days(-1), Title: "Intro mail", Participants: []string{}, AuthorID: "sh-ana"},
		},
		SuccessStories: []SuccessStory{
			{Base: base("ss-1", days(-2), days(-2)), ConnectID: "c-1", Title: "Pilot signed", KeyOutcomes: []string{"PO issued"}},
		},
	}
}

func fixtureIndex() *Index { return BuildIndex(fixtureDataset()) }

func itemIDs(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID()
	}
	return out
}

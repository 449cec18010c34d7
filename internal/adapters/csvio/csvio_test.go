package csvio

import (
	"connectcore/internal/core"
	"connectcore/pkg/domain"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func exchangeIndex() *core.Index {
	gone := epoch.Add(-time.Hour)
	return core.BuildIndex(core.Dataset{
		Stakeholders: []core.Stakeholder{
			{Base: core.Base{ID: "sh-ana"}, Name: "Ana Lead", Email: "ana@connect.io", Affiliation: domain.AffiliationInternal},
			{Base: core.Base{ID: "sh-bo"}, Name: `Bo "The Builder"`, Email: "bo@rocket.io", Role: "CEO", Phone: "555", Affiliation: domain.AffiliationStartup},
			{Base: core.Base{ID: "sh-cy"}, Name: "Cy", Email: "cy@mega.com", Affiliation: domain.AffiliationCorporate},
			{Base: core.Base{ID: "sh-old"}, Trashable: core.Trashable{DeletedAt: &gone}, Name: "Old Ana", Email: "ANA@connect.io", Affiliation: domain.AffiliationInternal},
		},
		Organizations: []core.Organization{
			{Base: core.Base{ID: "org-rocket"}, Name: "Rocket", Type: domain.OrgTypeStartup, OwnerID: "sh-ana", ContactIDs: []string{"sh-bo", "sh-missing"}},
			{Base: core.Base{ID: "org-mega"}, Name: "Mega, Inc", Type: domain.OrgTypeCorporate, ContactIDs: []string{"sh-cy"}},
		},
		Statuses:       []core.Status{{ID: "st-new", Name: "New"}},
		IntentLevels:   []core.IntentLevel{{ID: "il-hot", Name: "Hot"}},
		NeedTypes:      []core.NeedType{{ID: "nt-pilot", Name: "Pilot"}},
		NonRevenueTags: []core.NonRevenueTag{{ID: "tag-brand", Name: "Brand"}, {ID: "tag-pr", Name: "PR"}},
	})
}

func TestExportConnects(t *testing.T) {
	idx := exchangeIndex()
	c := core.Connect{
		Base:                core.Base{ID: "c-1"},
		Title:               "Rocket x Mega",
		StartupID:           "org-rocket",
		CorporateID:         "org-mega",
		OwnerID:             "sh-ana",
		StatusID:            "st-new",
		Date:                epoch,
		StartupContactIDs:   []string{"sh-bo", "sh-missing"},
		CorporateContactIDs: []string{"sh-cy"},
	}
	out, err := Export(core.ViewConnects, []core.Item{core.ConnectItem(c), core.LeadItem(core.Lead{})}, idx)
	require.NoError(t, err)
	lines := strings.Split(string(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Connect ID,Title,Date,Status Name,Owner Name,Owner Email,Startup Name,Corporate Name,Startup Contact Emails,Corporate Contact Emails", lines[0])
	require.Equal(t, `"c-1","Rocket x Mega","2025-03-10T12:00:00.000Z","New","Ana Lead","ana@connect.io","Rocket","Mega, Inc","bo@rocket.io","cy@mega.com"`, lines[1])
}

func TestExportQuotesAndEmpty(t *testing.T) {
	idx := exchangeIndex()
	out, err := Export(core.ViewStakeholders, []core.Item{core.StakeholderItem(idx.Stakeholders["sh-bo"])}, idx)
	require.NoError(t, err)
	require.Equal(t, "Stakeholder ID,Name,Role,Email,Phone,Affiliation\n"+`"sh-bo","Bo ""The Builder""","CEO","bo@rocket.io","555","startup"`, string(out))

	out, err = Export(core.ViewLeads, nil, idx)
	require.NoError(t, err)
	require.Empty(t, out)

	_, err = Export(core.ViewTrash, nil, idx)
	var unsupported UnsupportedViewError
	require.True(t, errors.As(err, &unsupported))
}

func TestExportLeadsAndOrganizations(t *testing.T) {
	idx := exchangeIndex()
	lead := core.Lead{
		Base: core.Base{ID: "l-1"}, Name: "Solar", OrganizationType: domain.OrgTypeCorporate, Source: "Expo",
		IntentLevelID: "il-hot", NeedTypeID: "nt-pilot", RevenuePotential: 1250.5,
		NonRevenueTagIDs: []string{"tag-brand", "tag-gone", "tag-pr"}, OwnerID: "sh-ana", Comments: "warm",
	}
	out, err := Export(core.ViewLeads, []core.Item{core.LeadItem(lead)}, idx)
	require.NoError(t, err)
	require.Contains(t, string(out), `"l-1","Solar","corporate","Expo","Hot","Pilot","1250.5","Brand;PR","ana@connect.io","warm"`)

	out, err = Export(core.ViewStartups, []core.Item{core.OrganizationItem(idx.Organizations["org-rocket"])}, idx)
	require.NoError(t, err)
	require.Equal(t, "Organization ID,Name,Type,Owner Email,Contact Emails\n"+`"org-rocket","Rocket","startup","ana@connect.io","bo@rocket.io"`, string(out))
}

func TestFileName(t *testing.T) {
	require.Equal(t, "connects_export_2025-03-10.csv", FileName(core.ViewConnects, false, epoch))
	require.Equal(t, "leads_selection_2025-03-10.csv", FileName(core.ViewLeads, true, epoch))
}

func TestParseHeaderChecks(t *testing.T) {
	idx := exchangeIndex()
	_, err := Parse(core.ViewConnects, strings.NewReader("Title,Startup Name\n"), idx)
	require.ErrorIs(t, err, ErrTooFewRows)

	_, err = Parse(core.ViewConnects, strings.NewReader("title,startup name,corporate name,owner email\nx,y,z,w\n"), idx)
	require.EqualError(t, err, `Your CSV is missing the required header: "Status Name"`)

	_, err = Parse(core.ViewLeads, strings.NewReader("Name,Owner Email,Intent Level\nSolar,ana@connect.io,Hot\n"), idx)
	var missing MissingHeaderError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "Need Type", missing.Header)
	require.EqualError(t, err, `Your CSV is missing the required header: "Need Type"`)

	_, err = Parse(core.ViewSuccess, strings.NewReader("a\nb\n"), idx)
	require.Error(t, err)
}

func TestParseConnects(t *testing.T) {
	idx := exchangeIndex()
	input := "\ufeffconnect id,TITLE,Startup Name,Corporate Name,Owner Email,Status Name,Startup Contact Emails,Date\n" +
		`c-9,"Rocket x Mega",rocket,"MEGA, INC",ANA@connect.io,new,"bo@rocket.io; nobody@x.io",2025-01-05` + "\n" +
		"\n" +
		`,Orphan,Nowhere,Mega Inc,ana@connect.io,Unknown,,` + "\n" +
		`,Bad Date,Rocket,"Mega, Inc",ana@connect.io,New,,someday` + "\n"
	p := Parser{Now: func() time.Time { return epoch }}
	rows, err := p.Parse(core.ViewConnects, strings.NewReader(input), idx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	require.Equal(t, 2, first.Number)
	require.Equal(t, "c-9", first.ID)
	require.Equal(t, "Rocket x Mega", first.Identifier)
	require.Equal(t, "org-rocket", first.Fields["startupId"])
	require.Equal(t, "org-mega", first.Fields["corporateId"])
	require.Equal(t, "sh-ana", first.Fields["ownerId"], "active stakeholder wins the email lookup")
	require.Equal(t, "st-new", first.Fields["statusId"])
	require.Equal(t, []string{"sh-bo"}, first.Fields["startupContactIds"])
	require.Equal(t, []string{}, first.Fields["corporateContactIds"])
	require.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), first.Fields["date"])

	orphan := rows[1]
	require.Equal(t, 3, orphan.Number)
	require.Empty(t, orphan.ID)
	require.NotContains(t, orphan.Fields, "startupId")
	require.NotContains(t, orphan.Fields, "corporateId")
	require.NotContains(t, orphan.Fields, "statusId")
	require.Equal(t, epoch, orphan.Fields["date"])
}

func TestParseLeads(t *testing.T) {
	idx := exchangeIndex()
	input := "Name,Owner Email,Intent Level,Need Type,Revenue Potential,Non-Revenue Value,Organization Type\n" +
		"Solar,ana@connect.io,HOT,pilot,1500 approx,brand;unknown; pr,\n" +
		"Wind,ana@connect.io,Hot,Pilot,n/a,,Corporate\n"
	rows, err := Parse(core.ViewLeads, strings.NewReader(input), idx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1500.0, rows[0].Fields["revenuePotential"])
	require.Equal(t, []string{"tag-brand", "tag-pr"}, rows[0].Fields["nonRevenueTagIds"])
	require.Equal(t, domain.OrgTypeStartup, rows[0].Fields["organizationType"])
	require.Equal(t, "il-hot", rows[0].Fields["intentLevelId"])
	require.Equal(t, "nt-pilot", rows[0].Fields["needTypeId"])
	require.Equal(t, 0.0, rows[1].Fields["revenuePotential"])
	require.Equal(t, domain.OrgTypeCorporate, rows[1].Fields["organizationType"])
}

func TestParseOrganizationsAndStakeholders(t *testing.T) {
	idx := exchangeIndex()
	rows, err := Parse(core.ViewCorporates, strings.NewReader("Name,Owner Email,Contact Emails\nNova,nobody@x.io,cy@mega.com\n"), idx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, domain.OrgTypeCorporate, rows[0].Fields["type"])
	require.Equal(t, "", rows[0].Fields["ownerId"])
	require.Equal(t, []string{"sh-cy"}, rows[0].Fields["contactIds"])

	rows, err = Parse(core.ViewStartups, strings.NewReader("Name,Contact Emails\nRocket,bo@rocket.io; BO@rocket.io;cy@mega.com;bo@rocket.io\n"), idx)
	require.NoError(t, err)
	require.Equal(t, []string{"sh-bo", "sh-cy"}, rows[0].Fields["contactIds"])

	rows, err = Parse(core.ViewStakeholders, strings.NewReader("Stakeholder ID,Name,Email,Affiliation\nsh-bo,Bo,bo@rocket.io,Startup\n,,x@y.io,martian\n"), idx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "sh-bo", rows[0].ID)
	require.Equal(t, domain.AffiliationStartup, rows[0].Fields["affiliation"])
	require.Equal(t, "N/A", rows[1].Identifier)
	require.NotContains(t, rows[1].Fields, "affiliation")
}

func TestHeaderDisclaimer(t *testing.T) {
	for _, v := range []core.View{core.ViewConnects, core.ViewLeads, core.ViewStartups, core.ViewStakeholders} {
		require.Contains(t, HeaderDisclaimer(v), "If the ID column is omitted")
	}
	require.Equal(t, "This view does not support imports.", HeaderDisclaimer(core.ViewTrash))
}

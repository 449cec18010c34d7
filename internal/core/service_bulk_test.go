package core_test

import (
	"connectcore/internal/core"
	"connectcore/pkg/domain"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBulkSoftDeleteReportsBlockedAndMissing(t *testing.T) {
	s := seedService(t)
	ctx := context.Background()
	free, err := s.svc.SaveStakeholder(ctx, core.Stakeholder{Name: "Free Agent", Email: "free@x.io", Affiliation: domain.AffiliationStartup})
	if err != nil {
		t.Fatalf("save stakeholder: %v", err)
	}

	report := s.svc.BulkSoftDelete(ctx, []core.ItemRef{
		{Kind: core.KindStakeholder, ID: s.founder.ID},
		{Kind: core.KindStakeholder, ID: free.ID},
		{Kind: core.KindConnect, ID: "missing"},
	})
	if diff := cmp.Diff([]core.ItemRef{{Kind: core.KindStakeholder, ID: free.ID}}, report.Succeeded); diff != "" {
		t.Fatalf("succeeded mismatch (-want +got):\n%s", diff)
	}
	if len(report.Blocked) != 1 || report.Blocked[0].ID != s.founder.ID {
		t.Fatalf("expected founder blocked, got %+v", report.Blocked)
	}
	if len(report.Failed) != 1 || report.Failed[0].Item.ID != "missing" {
		t.Fatalf("expected missing connect failed, got %+v", report.Failed)
	}
	if got := report.Summary(); got != "1 succeeded, 1 failed, 1 blocked" {
		t.Fatalf("unexpected summary %q", got)
	}
	if !snapshot(t, s.svc).Stakeholders[free.ID].Deleted() {
		t.Fatalf("free stakeholder should be trashed")
	}

	restored := s.svc.BulkRestore(ctx, []core.ItemRef{{Kind: core.KindStakeholder, ID: free.ID}})
	if len(restored.Succeeded) != 1 || snapshot(t, s.svc).Stakeholders[free.ID].Deleted() {
		t.Fatalf("expected restore, got %+v", restored)
	}
}

func TestBulkFallsBackToSingleItemBatches(t *testing.T) {
	s := seedService(t)
	ctx := context.Background()
	free, err := s.svc.SaveStakeholder(ctx, core.Stakeholder{Name: "Free Agent", Email: "free@x.io", Affiliation: domain.AffiliationStartup})
	if err != nil {
		t.Fatalf("save stakeholder: %v", err)
	}
	report := s.svc.BulkSoftDelete(ctx, []core.ItemRef{
		{Kind: core.KindStakeholder, ID: free.ID},
		{Kind: core.KindStatus, ID: s.status.ID},
	})
	if len(report.Succeeded) != 1 || report.Succeeded[0].ID != free.ID {
		t.Fatalf("expected the stakeholder to succeed on retry, got %+v", report)
	}
	if len(report.Failed) != 1 || report.Failed[0].Item.Kind != core.KindStatus {
		t.Fatalf("expected the status to fail, got %+v", report.Failed)
	}
}

func TestBulkPermanentDeleteCascadesConnects(t *testing.T) {
	s := seedService(t)
	ctx := context.Background()
	act, err := s.svc.SaveActivity(ctx, core.Activity{ConnectID: s.connect.ID, Type: domain.ActivityEmail, Title: "Mail"})
	if err != nil {
		t.Fatalf("save activity: %v", err)
	}
	other, err := s.svc.SaveOrganization(ctx, core.Organization{Name: "Unused", Type: domain.OrgTypeCorporate})
	if err != nil {
		t.Fatalf("save org: %v", err)
	}
	report := s.svc.BulkPermanentDelete(ctx, []core.ItemRef{
		{Kind: core.KindConnect, ID: s.connect.ID},
		{Kind: core.KindOrganization, ID: other.ID},
	})
	if len(report.Succeeded) != 2 || len(report.Failed)+len(report.Blocked) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	idx := snapshot(t, s.svc)
	if _, ok := idx.Activities[act.ID]; ok {
		t.Fatalf("activity should cascade")
	}
	if _, ok := idx.Organizations[other.ID]; ok {
		t.Fatalf("organization should be removed")
	}
	if empty := s.svc.BulkRestore(ctx, nil); len(empty.Succeeded) != 0 {
		t.Fatalf("empty bulk does nothing")
	}
}

func TestImportCreatesUpdatesAndReportsRows(t *testing.T) {
	s := seedService(t)
	ctx := context.Background()
	complete := func(title string) core.Patch {
		return core.Patch{
			"title":       title,
			"startupId":   s.startup.ID,
			"corporateId": s.corporate.ID,
			"ownerId":     s.owner.ID,
			"statusId":    s.status.ID,
		}
	}
	missingStartup := complete("Half")
	delete(missingStartup, "startupId")

	report, err := s.svc.Import(ctx, core.ViewConnects, []core.ImportRow{
		{Number: 2, Identifier: "Fresh", Fields: complete("Fresh")},
		{Number: 3, ID: s.connect.ID, Identifier: "Renamed", Fields: complete("Renamed")},
		{Number: 4, Fields: core.Patch{"title": "  "}},
		{Number: 5, Identifier: "Half", Fields: missingStartup},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Created != 1 || report.Updated != 1 {
		t.Fatalf("unexpected counts %+v", report)
	}
	wantErrors := []string{
		`Row 4 ("N/A"): Missing 'Title'.`,
		`Row 5 ("Half"): Could not find a Startup Organization for row.`,
	}
	if diff := cmp.Diff(wantErrors, report.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`Row 2: Created "Fresh".`, `Row 3: Updated "Renamed".`}, report.Successes); diff != "" {
		t.Fatalf("successes mismatch (-want +got):\n%s", diff)
	}
	title, msg := report.Summary()
	if title != "Import Complete with Errors" || !strings.HasPrefix(msg, "2 records imported successfully.\n\n2 records failed:\n- Row 4") {
		t.Fatalf("unexpected summary %q %q", title, msg)
	}

	idx := snapshot(t, s.svc)
	if got := idx.Connects[s.connect.ID]; got.Title != "Renamed" || !got.CreatedAt.Equal(s.connect.CreatedAt) {
		t.Fatalf("expected merged update, got %+v", got)
	}
	if len(idx.Connects) != 2 {
		t.Fatalf("expected one created connect, got %d total", len(idx.Connects))
	}
}

func TestImportSummaryTruncatesErrors(t *testing.T) {
	var report core.ImportReport
	for i := range 25 {
		report.Errors = append(report.Errors, strings.Repeat("x", i+1))
	}
	title, msg := report.Summary()
	if title != "Import Complete with Errors" || !strings.HasPrefix(msg, "No records were imported.") || !strings.HasSuffix(msg, "- ...and more") {
		t.Fatalf("unexpected summary %q %q", title, msg)
	}
	if strings.Count(msg, "\n- ") != 21 {
		t.Fatalf("expected 20 errors plus the overflow marker, got %q", msg)
	}
	ok := core.ImportReport{Successes: []string{"a", "b"}}
	if title, msg := ok.Summary(); title != "Import Successful" || msg != "Successfully imported and processed 2 records." {
		t.Fatalf("unexpected success summary %q %q", title, msg)
	}
}

func TestImportRejectsUnsupportedView(t *testing.T) {
	s := seedService(t)
	if _, err := s.svc.Import(context.Background(), core.ViewTrash, nil); err == nil {
		t.Fatalf("expected error for trash import")
	}
	if len(core.ImportableViews()) != 5 {
		t.Fatalf("unexpected importable views")
	}
}

package core

import (
	"connectcore/pkg/domain"
	"context"
	"encoding/json"
	"testing"

	"connectcore/internal/infra/persistence/memory"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func seedView(t *testing.T, fn func(tx Transaction) error) TransactionView {
	t.Helper()
	store := memory.NewStore(domain.NewRulesEngine())
	if _, err := store.RunInTransaction(context.Background(), fn); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var view TransactionView
	_ = store.View(context.Background(), func(v TransactionView) error {
		view = v
		return nil
	})
	return view
}

func TestDefaultRulesEngineRegistersRules(t *testing.T) {
	got := NewDefaultRulesEngine().Rules()
	want := map[string]bool{"taxonomy_in_use": true, "activity_parent": true, "connect_parties": true}
	if len(got) != len(want) {
		t.Fatalf("unexpected rules %v", got)
	}
	for _, name := range got {
		if !want[name] {
			t.Fatalf("unexpected rule %q", name)
		}
	}
}

func TestTaxonomyInUseRule(t *testing.T) {
	view := seedView(t, func(tx Transaction) error {
		if err := tx.Set(domain.CollectionConnects, "c-live", Connect{Base: Base{ID: "c-live"}, StatusID: "st-live"}); err != nil {
			return err
		}
		return tx.Set(domain.CollectionConnects, "c-trash", Connect{Base: Base{ID: "c-trash"}, Trashable: deletedAt(days(0)), StatusID: "st-trash"})
	})
	rule := NewTaxonomyInUseRule()
	res, err := rule.Evaluate(context.Background(), view, []Change{
		{Collection: domain.CollectionStatuses, ID: "st-live", Action: ActionDelete},
		{Collection: domain.CollectionStatuses, ID: "st-trash", Action: ActionDelete},
		{Collection: domain.CollectionStatuses, ID: "st-live", Action: ActionUpdate},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].EntityID != "st-live" || !res.HasBlocking() {
		t.Fatalf("expected one blocking violation for st-live, got %+v", res.Violations)
	}
}

func TestActivityParentRule(t *testing.T) {
	rule := NewActivityParentRule()
	changes := []Change{
		{Collection: domain.CollectionActivities, ID: "ok", Action: ActionCreate, After: mustJSON(t, Activity{ConnectID: "c"})},
		{Collection: domain.CollectionActivities, ID: "orphan", Action: ActionCreate, After: mustJSON(t, Activity{})},
		{Collection: domain.CollectionActivities, ID: "both", Action: ActionUpdate, After: mustJSON(t, Activity{ConnectID: "c", LeadID: "l"})},
		{Collection: domain.CollectionActivities, ID: "gone", Action: ActionDelete},
	}
	res, err := rule.Evaluate(context.Background(), nil, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.Violations[0].EntityID != "orphan" || res.Violations[1].EntityID != "both" {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
}

func TestConnectPartiesRuleWarns(t *testing.T) {
	view := seedView(t, func(tx Transaction) error {
		if err := tx.Set(domain.CollectionOrganizations, "org-s", Organization{Base: Base{ID: "org-s"}, Name: "S", Type: domain.OrgTypeStartup}); err != nil {
			return err
		}
		return tx.Set(domain.CollectionOrganizations, "org-c", Organization{Base: Base{ID: "org-c"}, Name: "C", Type: domain.OrgTypeCorporate})
	})
	rule := NewConnectPartiesRule()
	res, err := rule.Evaluate(context.Background(), view, []Change{
		{Collection: domain.CollectionConnects, ID: "good", Action: ActionCreate, After: mustJSON(t, Connect{StartupID: "org-s", CorporateID: "org-c"})},
		{Collection: domain.CollectionConnects, ID: "swapped", Action: ActionCreate, After: mustJSON(t, Connect{StartupID: "org-c", CorporateID: "org-s"})},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.HasBlocking() {
		t.Fatalf("expected two warnings for the swapped connect, got %+v", res.Violations)
	}
	for _, v := range res.Violations {
		if v.EntityID != "swapped" || v.Severity != SeverityWarn {
			t.Fatalf("unexpected violation %+v", v)
		}
	}
}

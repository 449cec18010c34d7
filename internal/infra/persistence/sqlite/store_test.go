package sqlite

import (
	"connectcore/pkg/domain"
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(ctx, path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	id, err := domain.AddDocument(ctx, store, domain.CollectionOrganizations, domain.Organization{Name: "Acme", Type: domain.OrgTypeStartup})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := domain.UpdateDocument(ctx, store, domain.CollectionOrganizations, id, domain.Patch{"name": "Acme Labs"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(ctx, path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
	doc, ok, err := reloaded.Get(ctx, domain.CollectionOrganizations, id)
	if err != nil || !ok {
		t.Fatalf("expected organization after reload, ok=%v err=%v", ok, err)
	}
	org, _ := domain.Decode[domain.Organization](doc)
	if org.Name != "Acme Labs" || org.Deleted() {
		t.Fatalf("unexpected reloaded org %+v", org)
	}
}

func TestSQLiteStoreWritesOneBucketPerCollection(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := domain.AddDocument(ctx, store, domain.CollectionStatuses, domain.Status{Name: "Open"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != len(domain.Collections()) {
		t.Fatalf("expected %d buckets, got %d", len(domain.Collections()), count)
	}
}

func TestSQLiteStoreFailedTransactionDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(ctx, path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.Add(domain.CollectionLeads, domain.Lead{Name: "Ghost"}); err != nil {
			return err
		}
		return tx.Delete(domain.CollectionLeads, "missing")
	})
	if err == nil {
		t.Fatalf("expected delete of missing lead to fail")
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", count)
	}
}

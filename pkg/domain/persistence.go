package domain

import "context"

// Transaction exposes the write operations a backing store applies as one
// atomic batch.
type Transaction interface {
	Snapshot() TransactionView
	// Add stores a new document and returns its id. Records that already
	// carry an id keep it. Timestamped collections get createdAt/updatedAt,
	// soft-deletable ones get deletedAt: null.
	Add(c Collection, data any) (string, error)
	// Set writes a full document under id, creating it if missing.
	Set(c Collection, id string, data any) error
	// Update merges patch into an existing document.
	Update(c Collection, id string, patch Patch) error
	Delete(c Collection, id string) error
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// PersistentStore is the backing store consumed by the workspace and the
// mutation pipeline.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetAll(ctx context.Context, c Collection) ([]Document, error)
	Get(ctx context.Context, c Collection, id string) (Document, bool, error)
	Where(ctx context.Context, c Collection, field string, value any) ([]Document, error)
	// Subscribe invokes fn with the current documents of c and again after
	// every committed change to c. The returned func detaches the listener.
	Subscribe(c Collection, fn func([]Document)) (unsubscribe func())
}

// AddDocument stores data in c as a single-write batch.
func AddDocument(ctx context.Context, store PersistentStore, c Collection, data any) (string, error) {
	var id string
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		id, err = tx.Add(c, data)
		return err
	})
	return id, err
}

// UpdateDocument merges patch into the document as a single-write batch.
func UpdateDocument(ctx context.Context, store PersistentStore, c Collection, id string, patch Patch) error {
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.Update(c, id, patch)
	})
	return err
}

// DeleteDocument removes the document as a single-write batch.
func DeleteDocument(ctx context.Context, store PersistentStore, c Collection, id string) error {
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.Delete(c, id)
	})
	return err
}

// Package memory provides an in-memory implementation of the document store
// used for tests, ephemeral workspaces and as the transactional core of the
// durable backends.
package memory

import (
	"connectcore/pkg/domain"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Document aliases domain.Document.
	Document = domain.Document
	// Collection aliases domain.Collection.
	Collection = domain.Collection
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	collections map[Collection]map[string]json.RawMessage
}

// Snapshot captures a point-in-time clone of the store state keyed by
// collection and document id.
type Snapshot struct {
	Collections map[Collection]map[string]json.RawMessage `json:"collections"`
}

func newMemoryState() memoryState {
	state := memoryState{collections: make(map[Collection]map[string]json.RawMessage)}
	for _, c := range domain.Collections() {
		state.collections[c] = make(map[string]json.RawMessage)
	}
	return state
}

// clone copies the collection maps. Stored bodies are replaced on write and
// never mutated in place, so they are shared.
func (s memoryState) clone() memoryState {
	cloned := memoryState{collections: make(map[Collection]map[string]json.RawMessage, len(s.collections))}
	for c, docs := range s.collections {
		cp := make(map[string]json.RawMessage, len(docs))
		for id, raw := range docs {
			cp[id] = raw
		}
		cloned.collections[c] = cp
	}
	return cloned
}

func (s memoryState) bucket(c Collection) map[string]json.RawMessage {
	docs, ok := s.collections[c]
	if !ok {
		docs = make(map[string]json.RawMessage)
		s.collections[c] = docs
	}
	return docs
}

func (s memoryState) list(c Collection) []Document {
	docs := s.collections[c]
	out := make([]Document, 0, len(docs))
	for id, raw := range docs {
		out = append(out, Document{Collection: c, ID: id, Data: raw})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s memoryState) find(c Collection, id string) (Document, bool) {
	raw, ok := s.collections[c][id]
	if !ok {
		return Document{}, false
	}
	return Document{Collection: c, ID: id, Data: raw}, true
}

func (s memoryState) where(c Collection, field string, value any) []Document {
	var out []Document
	for _, doc := range s.list(c) {
		if doc.Matches(field, value) {
			out = append(out, doc)
		}
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{Collections: cloned.collections}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for c, docs := range s.Collections {
		bucket := state.bucket(c)
		for id, raw := range docs {
			bucket[id] = append(json.RawMessage(nil), raw...)
		}
	}
	return state
}

// migrateSnapshot normalises imported documents: every body carries its id,
// soft-deletable records carry deletedAt, and organization contact lists are
// deduplicated. Bodies that are not JSON objects are dropped.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Collections == nil {
		snapshot.Collections = map[Collection]map[string]json.RawMessage{}
	}
	for c, docs := range snapshot.Collections {
		for id, raw := range docs {
			var fields map[string]any
			if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
				delete(docs, id)
				continue
			}
			changed := false
			if fields["id"] != id {
				fields["id"] = id
				changed = true
			}
			if c.SoftDeletable() {
				if _, ok := fields["deletedAt"]; !ok {
					fields["deletedAt"] = nil
					changed = true
				}
			}
			if c == domain.CollectionOrganizations {
				if contacts, ok := fields["contactIds"].([]any); ok {
					deduped := dedupeValues(contacts)
					if len(deduped) != len(contacts) {
						fields["contactIds"] = deduped
						changed = true
					}
				}
			}
			if !changed {
				continue
			}
			if body, err := json.Marshal(fields); err == nil {
				docs[id] = body
			}
		}
	}
	return snapshot
}

func dedupeValues(values []any) []any {
	seen := make(map[any]struct{}, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Store provides an in-memory transactional document store.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	idFn   func() string

	// version increases with every state change; deliveries carry it so a
	// subscriber never sees an older list after a newer one.
	version uint64

	subMu   sync.Mutex
	subs    map[Collection]map[int]*subscription
	nextSub int
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp documents.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.idFn = gen
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:   newMemoryState(),
		engine:  engine,
		nowFn:   func() time.Time { return time.Now().UTC() },
		idFn:    uuid.NewString,
		version: 1,
		subs:    make(map[Collection]map[int]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot and
// notifies every subscriber.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
	s.version++
	pending := s.pendingNotifications(domain.Collections())
	s.mu.Unlock()
	s.notify(pending)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// List returns all documents of a collection ordered by id.
func (v transactionView) List(c Collection) []Document { return v.state.list(c) }

// Find looks up a document by id.
func (v transactionView) Find(c Collection, id string) (Document, bool) { return v.state.find(c, id) }

// Where returns documents whose field equals value.
func (v transactionView) Where(c Collection, field string, value any) []Document {
	return v.state.where(c, field, value)
}

// RunInTransaction executes fn within a transactional copy of the store
// state. Writes commit together once registered rules pass.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			s.mu.Unlock()
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			s.mu.Unlock()
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	s.version++
	pending := s.pendingNotifications(touched(tx.changes))
	s.mu.Unlock()
	s.notify(pending)
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// GetAll returns every committed document in c.
func (s *Store) GetAll(ctx context.Context, c Collection) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.list(c), nil
}

// Get returns a committed document by id.
func (s *Store) Get(ctx context.Context, c Collection, id string) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.state.find(c, id)
	return doc, ok, nil
}

// Where returns committed documents whose field equals value.
func (s *Store) Where(ctx context.Context, c Collection, field string, value any) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.where(c, field, value), nil
}

// Subscribe registers fn for change notifications on c and delivers the
// current documents immediately.
func (s *Store) Subscribe(c Collection, fn func([]Document)) func() {
	sub := &subscription{fn: fn}
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs[c] == nil {
		s.subs[c] = make(map[int]*subscription)
	}
	s.subs[c][id] = sub
	s.subMu.Unlock()

	s.mu.RLock()
	initial, version := s.state.list(c), s.version
	s.mu.RUnlock()
	sub.deliver(version, initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs[c], id)
			s.subMu.Unlock()
		})
	}
}

type notification struct {
	sub     *subscription
	version uint64
	docs    []Document
}

// subscription serialises deliveries to one callback. Lists queued while a
// delivery is running collapse to the newest, and lists older than the last
// one handed out are dropped. A callback that commits to the store has its
// own notification delivered after it returns.
type subscription struct {
	fn func([]Document)

	mu        sync.Mutex
	running   bool
	delivered uint64
	queued    uint64
	docs      []Document
}

func (sub *subscription) deliver(version uint64, docs []Document) {
	sub.mu.Lock()
	if version <= sub.delivered || version <= sub.queued {
		sub.mu.Unlock()
		return
	}
	sub.queued, sub.docs = version, docs
	if sub.running {
		sub.mu.Unlock()
		return
	}
	sub.running = true
	defer func() {
		sub.running = false
		sub.mu.Unlock()
	}()
	for sub.queued > sub.delivered {
		next := sub.docs
		sub.delivered, sub.docs = sub.queued, nil
		sub.mu.Unlock()
		sub.fn(next)
		sub.mu.Lock()
	}
}

// pendingNotifications must be called with s.mu held so the delivered lists
// match the committed state.
func (s *Store) pendingNotifications(collections []Collection) []notification {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	var out []notification
	for _, c := range collections {
		subs := s.subs[c]
		if len(subs) == 0 {
			continue
		}
		ids := make([]int, 0, len(subs))
		for id := range subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		docs := s.state.list(c)
		for _, id := range ids {
			out = append(out, notification{sub: subs[id], version: s.version, docs: docs})
		}
	}
	return out
}

func (s *Store) notify(pending []notification) {
	for _, n := range pending {
		n.sub.deliver(n.version, n.docs)
	}
}

func touched(changes []Change) []Collection {
	seen := map[Collection]struct{}{}
	var out []Collection
	for _, ch := range changes {
		if _, ok := seen[ch.Collection]; ok {
			continue
		}
		seen[ch.Collection] = struct{}{}
		out = append(out, ch.Collection)
	}
	return out
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Add stores a new document within the transaction.
func (tx *transaction) Add(c Collection, data any) (string, error) {
	fields, err := domain.Encode(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c, err)
	}
	id, _ := fields["id"].(string)
	if id == "" {
		id = tx.store.idFn()
	}
	bucket := tx.state.bucket(c)
	if _, exists := bucket[id]; exists {
		return "", fmt.Errorf("%s %q already exists", c, id)
	}
	fields["id"] = id
	if c.Timestamped() {
		fields["createdAt"] = tx.now
		fields["updatedAt"] = tx.now
	}
	if c.SoftDeletable() {
		fields["deletedAt"] = nil
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%s %q: %w", c, id, err)
	}
	bucket[id] = body
	tx.recordChange(Change{Collection: c, Action: domain.ActionCreate, ID: id, After: body})
	return id, nil
}

// Set writes a full document under id, replacing any existing body.
func (tx *transaction) Set(c Collection, id string, data any) error {
	if id == "" {
		return fmt.Errorf("%s: id required", c)
	}
	fields, err := domain.Encode(data)
	if err != nil {
		return fmt.Errorf("%s %q: %w", c, id, err)
	}
	fields["id"] = id
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%s %q: %w", c, id, err)
	}
	bucket := tx.state.bucket(c)
	before, existed := bucket[id]
	bucket[id] = body
	action := domain.ActionCreate
	if existed {
		action = domain.ActionUpdate
	}
	tx.recordChange(Change{Collection: c, Action: action, ID: id, Before: before, After: body})
	return nil
}

// Update merges patch into an existing document and refreshes updatedAt.
func (tx *transaction) Update(c Collection, id string, patch domain.Patch) error {
	bucket := tx.state.bucket(c)
	before, ok := bucket[id]
	if !ok {
		return fmt.Errorf("%s %q not found", c, id)
	}
	merged := make(domain.Patch, len(patch)+1)
	for k, v := range patch {
		if k == "id" || k == "createdAt" {
			continue
		}
		merged[k] = v
	}
	if c.Timestamped() {
		if _, explicit := merged["updatedAt"]; !explicit {
			merged["updatedAt"] = tx.now
		}
	}
	body, err := domain.MergePatch(before, merged)
	if err != nil {
		return fmt.Errorf("%s %q: %w", c, id, err)
	}
	bucket[id] = body
	tx.recordChange(Change{Collection: c, Action: domain.ActionUpdate, ID: id, Before: before, After: body})
	return nil
}

// Delete removes a document. No referential checks are applied; dependents
// are cleaned up by the caller.
func (tx *transaction) Delete(c Collection, id string) error {
	bucket := tx.state.bucket(c)
	before, ok := bucket[id]
	if !ok {
		return fmt.Errorf("%s %q not found", c, id)
	}
	delete(bucket, id)
	tx.recordChange(Change{Collection: c, Action: domain.ActionDelete, ID: id, Before: before})
	return nil
}

package core

import (
	"connectcore/pkg/domain"
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Workspace is the live entity store. It keeps an immutable Dataset in sync
// with the backing store and rebuilds the Index after every change.
type Workspace struct {
	store  PersistentStore
	clock  Clock
	logger Logger

	mu     sync.RWMutex
	data   Dataset
	idx    *Index
	unsubs []func()

	listenMu  sync.Mutex
	listeners map[int]func(*Index)
	nextID    int
}

// OpenWorkspace loads every collection concurrently, then subscribes to live
// changes. Load failures are returned as a LoadError.
func OpenWorkspace(ctx context.Context, store PersistentStore, opts ...ServiceOption) (*Workspace, error) {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	w := &Workspace{
		store:     store,
		clock:     cfg.clock,
		logger:    cfg.logger,
		listeners: make(map[int]func(*Index)),
	}

	collections := domain.Collections()
	loaded := make([][]Document, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collections {
		g.Go(func() error {
			docs, err := store.GetAll(gctx, c)
			if err != nil {
				return ClassifyStoreError("load "+string(c), err)
			}
			loaded[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		le := NewLoadError(err)
		w.logger.Error("workspace load failed", "title", le.Title(), "error", err)
		return nil, le
	}
	var ds Dataset
	for i, c := range collections {
		ds = ds.withCollection(c, loaded[i])
	}
	w.data = ds
	w.idx = BuildIndex(ds)

	for _, c := range collections {
		w.unsubs = append(w.unsubs, store.Subscribe(c, func(docs []Document) {
			w.apply(c, docs)
		}))
	}
	w.logger.Info("workspace loaded", "connects", len(ds.Connects), "leads", len(ds.Leads), "organizations", len(ds.Organizations), "stakeholders", len(ds.Stakeholders))
	return w, nil
}

func (w *Workspace) apply(c Collection, docs []Document) {
	w.mu.Lock()
	w.data = w.data.withCollection(c, docs)
	w.idx = BuildIndex(w.data)
	idx := w.idx
	w.mu.Unlock()

	w.listenMu.Lock()
	fns := make([]func(*Index), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.listenMu.Unlock()
	for _, fn := range fns {
		fn(idx)
	}
}

// OnChange registers fn to receive the rebuilt index after every change.
func (w *Workspace) OnChange(fn func(*Index)) (cancel func()) {
	w.listenMu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.listenMu.Unlock()
	return func() {
		w.listenMu.Lock()
		delete(w.listeners, id)
		w.listenMu.Unlock()
	}
}

// Index returns the current derived index.
func (w *Workspace) Index() *Index {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx
}

// Dataset returns the current snapshot.
func (w *Workspace) Dataset() Dataset {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.data
}

// Query runs a list query against the current index.
func (w *Workspace) Query(req QueryRequest) QueryResult {
	return Query(w.Index(), req)
}

// Stats computes the dashboard statistics at the workspace clock.
func (w *Workspace) Stats() DashboardStats {
	return ComputeStats(w.Dataset(), w.clock.Now())
}

// CurrentStakeholder maps an authenticated email to a stakeholder.
func (w *Workspace) CurrentStakeholder(email string) (Stakeholder, bool) {
	return w.Index().StakeholderByEmail(strings.TrimSpace(email))
}

// Settings returns the stored settings of a user.
func (w *Workspace) Settings(userID string) (UserSettings, bool) {
	for _, s := range w.Dataset().UserSettings {
		if s.ID == userID {
			return s, true
		}
	}
	return UserSettings{}, false
}

// Close detaches every store subscription.
func (w *Workspace) Close() {
	w.mu.Lock()
	unsubs := w.unsubs
	w.unsubs = nil
	w.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
}

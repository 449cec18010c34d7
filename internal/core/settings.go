package core

import (
	"connectcore/pkg/domain"
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

// DefaultSettingsDelay is the quiet period before column widths are written.
const DefaultSettingsDelay = time.Second

// SettingsBackend stores per-user preferences. SaveSettings merges the column
// widths of each view into the stored record.
type SettingsBackend interface {
	LoadSettings(ctx context.Context, userID string) (UserSettings, bool, error)
	SaveSettings(ctx context.Context, settings UserSettings) error
}

// DocumentSettings keeps user settings in the userSettings collection.
type DocumentSettings struct {
	store PersistentStore
}

// NewDocumentSettings returns a settings backend over store.
func NewDocumentSettings(store PersistentStore) *DocumentSettings {
	return &DocumentSettings{store: store}
}

// LoadSettings implements SettingsBackend.
func (d *DocumentSettings) LoadSettings(ctx context.Context, userID string) (UserSettings, bool, error) {
	doc, ok, err := d.store.Get(ctx, domain.CollectionUserSettings, userID)
	if err != nil || !ok {
		return UserSettings{}, false, err
	}
	settings, err := domain.Decode[UserSettings](doc)
	return settings, err == nil, err
}

// SaveSettings implements SettingsBackend.
func (d *DocumentSettings) SaveSettings(ctx context.Context, settings UserSettings) error {
	if settings.ID == "" {
		return errors.New("user settings: user id required")
	}
	_, err := d.store.RunInTransaction(ctx, func(tx Transaction) error {
		merged := settings
		if doc, ok := tx.Snapshot().Find(domain.CollectionUserSettings, settings.ID); ok {
			if prev, err := domain.Decode[UserSettings](doc); err == nil {
				merged = MergeSettings(prev, settings)
			}
		}
		return tx.Set(domain.CollectionUserSettings, settings.ID, merged)
	})
	return err
}

// MergeSettings overlays the column widths of next onto prev, view by view.
func MergeSettings(prev, next UserSettings) UserSettings {
	out := UserSettings{ID: next.ID, ColumnWidths: make(map[string][]float64, len(prev.ColumnWidths)+len(next.ColumnWidths))}
	maps.Copy(out.ColumnWidths, prev.ColumnWidths)
	maps.Copy(out.ColumnWidths, next.ColumnWidths)
	return out
}

// SettingsSaver debounces column width saves. Rapid saves for the same user
// collapse into one write issued after the quiet period.
type SettingsSaver struct {
	backend SettingsBackend
	delay   time.Duration
	logger  Logger

	mu      sync.Mutex
	pending map[string]UserSettings
	timer   *time.Timer
	closed  bool
	flushes sync.WaitGroup
}

// NewSettingsSaver returns a saver writing to backend after delay of quiet.
// A non-positive delay uses DefaultSettingsDelay.
func NewSettingsSaver(backend SettingsBackend, delay time.Duration, logger Logger) *SettingsSaver {
	if delay <= 0 {
		delay = DefaultSettingsDelay
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &SettingsSaver{
		backend: backend,
		delay:   delay,
		logger:  logger,
		pending: make(map[string]UserSettings),
	}
}

// SaveColumnWidths queues the widths of one view and restarts the quiet period.
func (s *SettingsSaver) SaveColumnWidths(userID string, view View, widths []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || userID == "" {
		return
	}
	next := UserSettings{ID: userID, ColumnWidths: map[string][]float64{string(view): append([]float64(nil), widths...)}}
	s.pending[userID] = MergeSettings(s.pending[userID], next)
	if s.timer != nil && s.timer.Stop() {
		s.timer.Reset(s.delay)
		return
	}
	s.flushes.Add(1)
	s.timer = time.AfterFunc(s.delay, s.fire)
}

// fire runs on the timer goroutine; each scheduled timer holds one count on
// flushes until it either runs or is stopped.
func (s *SettingsSaver) fire() {
	defer s.flushes.Done()
	if err := s.Flush(context.Background()); err != nil {
		s.logger.Error("save user settings failed", "error", err)
	}
}

// Flush writes every queued change immediately.
func (s *SettingsSaver) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]UserSettings)
	if s.timer != nil && s.timer.Stop() {
		s.flushes.Done()
	}
	s.timer = nil
	s.mu.Unlock()

	var errs []error
	for _, settings := range batch {
		if err := s.backend.SaveSettings(ctx, settings); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending changes and rejects further saves.
func (s *SettingsSaver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.Flush(ctx)
	s.flushes.Wait()
	return err
}

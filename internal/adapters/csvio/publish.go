package csvio

import (
	"bytes"
	"connectcore/internal/blob"
	"connectcore/internal/core"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrNothingToExport is returned when the export would hold no rows.
var ErrNothingToExport = errors.New("nothing to export")

// Publisher writes CSV exports into artifact storage and hands back a link.
type Publisher struct {
	store  blob.Store
	prefix string
	expiry time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPrefix stores artifacts under prefix.
func WithPrefix(prefix string) PublisherOption {
	return func(p *Publisher) { p.prefix = prefix }
}

// WithURLExpiry bounds presigned links.
func WithURLExpiry(d time.Duration) PublisherOption {
	return func(p *Publisher) { p.expiry = d }
}

// WithClock overrides the time used for file names.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) { p.now = now }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = l }
}

// NewPublisher returns a Publisher writing into store.
func NewPublisher(store blob.Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, prefix: "exports", now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish renders items for view and stores the file under
// <prefix>/<view>/<file name>. A same-day export of the same kind replaces
// the previous artifact. The returned Info carries the download link.
func (p *Publisher) Publish(ctx context.Context, v core.View, items []core.Item, idx *core.Index, selection bool) (blob.Info, error) {
	data, err := Export(v, items, idx)
	if err != nil {
		return blob.Info{}, err
	}
	if len(data) == 0 {
		return blob.Info{}, ErrNothingToExport
	}
	key := path.Join(p.prefix, string(v), FileName(v, selection, p.now()))
	info, err := p.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: blob.ContentTypeCSV,
		Metadata: map[string]string{
			"view":      string(v),
			"rows":      strconv.Itoa(len(items)),
			"selection": strconv.FormatBool(selection),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store export %s: %w", key, err)
	}
	url, err := p.store.URL(ctx, info.Key, p.expiry)
	if err != nil {
		return blob.Info{}, fmt.Errorf("link export %s: %w", key, err)
	}
	info.URL = url
	p.logger.Info("export published",
		zap.String("view", string(v)),
		zap.String("key", info.Key),
		zap.Int64("bytes", info.Size),
		zap.String("driver", string(p.store.Driver())))
	return info, nil
}

// List returns the stored exports of view, or of every view when v is "".
func (p *Publisher) List(ctx context.Context, v core.View) ([]blob.Info, error) {
	prefix := p.prefix + "/"
	if v != "" {
		prefix = path.Join(p.prefix, string(v)) + "/"
	}
	return p.store.List(ctx, prefix)
}

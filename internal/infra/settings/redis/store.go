// Package redis keeps user settings in Redis. Each user is one hash whose
// fields are view names and whose values are JSON encoded column widths, so
// saving one view never clobbers the widths of another.
package redis

import (
	"connectcore/internal/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix namespaces settings hashes.
const DefaultKeyPrefix = "connectcore:settings:"

// Config selects the Redis server.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// hashClient is the subset of the go-redis API the store uses.
type hashClient interface {
	HGetAll(ctx context.Context, key string) *goredis.StringStringMapCmd
	HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Store implements core.SettingsBackend.
type Store struct {
	client hashClient
	prefix string
}

// New connects to the server in cfg and verifies it answers.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s := newStore(client, cfg.KeyPrefix)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis settings: ping %s: %w", cfg.Address, err)
	}
	return s, nil
}

func newStore(client hashClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(userID string) string { return s.prefix + userID }

// LoadSettings implements core.SettingsBackend.
func (s *Store) LoadSettings(ctx context.Context, userID string) (core.UserSettings, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return core.UserSettings{}, false, fmt.Errorf("redis settings: load %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return core.UserSettings{}, false, nil
	}
	out := core.UserSettings{ID: userID, ColumnWidths: make(map[string][]float64, len(fields))}
	for view, raw := range fields {
		var widths []float64
		if err := json.Unmarshal([]byte(raw), &widths); err != nil {
			return core.UserSettings{}, false, fmt.Errorf("redis settings: decode %s/%s: %w", userID, view, err)
		}
		out.ColumnWidths[view] = widths
	}
	return out, true, nil
}

// SaveSettings implements core.SettingsBackend.
func (s *Store) SaveSettings(ctx context.Context, settings core.UserSettings) error {
	if settings.ID == "" {
		return errors.New("user settings: user id required")
	}
	if len(settings.ColumnWidths) == 0 {
		return nil
	}
	values := make([]interface{}, 0, 2*len(settings.ColumnWidths))
	for view, widths := range settings.ColumnWidths {
		raw, err := json.Marshal(widths)
		if err != nil {
			return err
		}
		values = append(values, view, string(raw))
	}
	if err := s.client.HSet(ctx, s.key(settings.ID), values...).Err(); err != nil {
		return fmt.Errorf("redis settings: save %s: %w", settings.ID, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.client.Close() }

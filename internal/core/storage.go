package core

import (
	"connectcore/internal/infra/persistence/memory"
	"connectcore/internal/infra/persistence/postgres"
	"connectcore/internal/infra/persistence/sqlite"
	"context"
	"fmt"
	"io"
	"strings"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the backing store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the configured backend. An empty driver selects
// sqlite. The returned closer releases the database handle, if any.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine, opts ...memory.Option) (PersistentStore, io.Closer, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine, opts...), nopCloser{}, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, nil, ClassifyStoreError("open sqlite", err)
		}
		return store, store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, nil, ClassifyStoreError("open postgres", err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

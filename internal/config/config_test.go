package config

import (
	"connectcore/internal/blob"
	"connectcore/internal/core"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != core.StorageSQLite || cfg.Storage.SQLitePath != "connectcore.db" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != blob.DriverFilesystem || cfg.Blob.FSRoot != "./exports" {
		t.Fatalf("unexpected blob %+v", cfg.Blob)
	}
	if cfg.URLExpiry != 15*time.Minute || cfg.Settings.Debounce != core.DefaultSettingsDelay {
		t.Fatalf("unexpected durations %v %v", cfg.URLExpiry, cfg.Settings.Debounce)
	}
	if cfg.Settings.Backend != SettingsDocument || cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected settings %+v gemini %+v", cfg.Settings, cfg.Gemini)
	}
	if cfg.ConfigSource != "" {
		t.Fatalf("expected no config file, got %s", cfg.ConfigSource)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	file := "storage:\n  driver: postgres\n  postgres_dsn: postgres://file/db\nblob:\n  driver: s3\n  s3:\n    bucket: from-file\nsettings:\n  backend: Redis\n  redis:\n    db: 2\n"
	if err := os.WriteFile(filepath.Join(dir, "connectcore.yaml"), []byte(file), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")
	t.Setenv("CONNECTCORE_BLOB_S3_BUCKET", "from-env")
	t.Setenv("CONNECTCORE_USER_EMAIL", "  olive@connect.io ")

	cfg, err := Load(Options{Overrides: map[string]any{KeyStoragePostgresDSN: "postgres://flag/db"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasSuffix(cfg.ConfigSource, "connectcore.yaml") {
		t.Fatalf("config file not used: %q", cfg.ConfigSource)
	}
	if cfg.Storage.Driver != core.StoragePostgres || cfg.Storage.PostgresDSN != "postgres://flag/db" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Blob.S3.Bucket != "from-env" || cfg.Blob.S3.Region != "us-east-1" {
		t.Fatalf("unexpected s3 %+v", cfg.Blob.S3)
	}
	if cfg.Settings.Backend != SettingsRedis || cfg.Settings.Redis.DB != 2 || cfg.Settings.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected settings %+v", cfg.Settings)
	}
	if cfg.Gemini.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.Gemini.APIKey)
	}
	if cfg.UserEmail != "olive@connect.io" {
		t.Fatalf("unexpected user %q", cfg.UserEmail)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load(Options{File: "absent.yaml"}); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Storage:  core.StorageConfig{Driver: core.StorageMemory},
			Blob:     blob.Config{Driver: blob.DriverMemory},
			Settings: SettingsConfig{Backend: SettingsDocument},
		}
	}
	cases := map[string]func(*Config){
		"postgres without dsn": func(c *Config) { c.Storage.Driver = core.StoragePostgres },
		"unknown storage":      func(c *Config) { c.Storage.Driver = "mongo" },
		"s3 without bucket":    func(c *Config) { c.Blob.Driver = blob.DriverS3 },
		"unknown blob":         func(c *Config) { c.Blob.Driver = "gcs" },
		"unknown settings":     func(c *Config) { c.Settings.Backend = "etcd" },
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

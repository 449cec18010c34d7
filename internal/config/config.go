// Package config loads connectcore settings from defaults, an optional
// config file, a .env file and CONNECTCORE_* environment variables, in
// increasing order of precedence.
package config

import (
	"connectcore/internal/blob"
	"connectcore/internal/core"
	"connectcore/internal/infra/settings/redis"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "CONNECTCORE"

// Config keys.
const (
	KeyStorageDriver      = "storage.driver"
	KeyStorageSQLitePath  = "storage.sqlite_path"
	KeyStoragePostgresDSN = "storage.postgres_dsn"

	KeyBlobDriver      = "blob.driver"
	KeyBlobFSRoot      = "blob.fs_root"
	KeyBlobURLExpiry   = "blob.url_expiry"
	KeyBlobS3Bucket    = "blob.s3.bucket"
	KeyBlobS3Region    = "blob.s3.region"
	KeyBlobS3Endpoint  = "blob.s3.endpoint"
	KeyBlobS3PathStyle = "blob.s3.path_style"
	KeyBlobS3AccessKey = "blob.s3.access_key_id"
	KeyBlobS3SecretKey = "blob.s3.secret_access_key"

	KeySettingsBackend       = "settings.backend"
	KeySettingsDebounce      = "settings.debounce"
	KeySettingsRedisAddr     = "settings.redis.addr"
	KeySettingsRedisPassword = "settings.redis.password"
	KeySettingsRedisDB       = "settings.redis.db"
	KeySettingsRedisPrefix   = "settings.redis.key_prefix"

	KeyGeminiAPIKey = "gemini.api_key"
	KeyGeminiModel  = "gemini.model"

	KeyUserEmail = "user.email"
)

// Settings backends.
const (
	SettingsDocument = "document"
	SettingsRedis    = "redis"
)

// SettingsConfig selects where user preferences live.
type SettingsConfig struct {
	Backend  string
	Debounce time.Duration
	Redis    redis.Config
}

// GeminiConfig configures the AI client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Config is the resolved configuration.
type Config struct {
	Storage      core.StorageConfig
	Blob         blob.Config
	URLExpiry    time.Duration
	Settings     SettingsConfig
	Gemini       GeminiConfig
	UserEmail    string
	ConfigSource string
}

// Options controls where Load looks for input.
type Options struct {
	// File is an explicit config file. When empty, connectcore.{yaml,json,toml}
	// is looked up in the working directory and is optional.
	File string
	// EnvFiles are loaded into the process environment first. Missing files
	// are ignored. Defaults to ".env".
	EnvFiles []string
	// Overrides are applied last, e.g. from command-line flags.
	Overrides map[string]any
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyStorageDriver, string(core.StorageSQLite))
	v.SetDefault(KeyStorageSQLitePath, "connectcore.db")
	v.SetDefault(KeyStoragePostgresDSN, "")
	v.SetDefault(KeyBlobDriver, string(blob.DriverFilesystem))
	v.SetDefault(KeyBlobFSRoot, "./exports")
	v.SetDefault(KeyBlobURLExpiry, "15m")
	v.SetDefault(KeyBlobS3Bucket, "")
	v.SetDefault(KeyBlobS3Region, "us-east-1")
	v.SetDefault(KeyBlobS3Endpoint, "")
	v.SetDefault(KeyBlobS3PathStyle, false)
	v.SetDefault(KeyBlobS3AccessKey, "")
	v.SetDefault(KeyBlobS3SecretKey, "")
	v.SetDefault(KeySettingsBackend, SettingsDocument)
	v.SetDefault(KeySettingsDebounce, core.DefaultSettingsDelay.String())
	v.SetDefault(KeySettingsRedisAddr, "localhost:6379")
	v.SetDefault(KeySettingsRedisPassword, "")
	v.SetDefault(KeySettingsRedisDB, 0)
	v.SetDefault(KeySettingsRedisPrefix, redis.DefaultKeyPrefix)
	v.SetDefault(KeyGeminiAPIKey, "")
	v.SetDefault(KeyGeminiModel, "gemini-2.5-flash")
	v.SetDefault(KeyUserEmail, "")
}

// New returns a viper instance with defaults and environment binding but no
// file input.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// The AI key is also accepted under the names used by the Gemini tooling.
	_ = v.BindEnv(KeyGeminiAPIKey, EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY")
	return v
}

// Load resolves the configuration described by opts.
func Load(opts Options) (Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := New()
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("connectcore")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var missing viper.ConfigFileNotFoundError
			if !errors.As(err, &missing) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}
	for k, val := range opts.Overrides {
		v.Set(k, val)
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(v.GetString(KeyStorageDriver)),
			SQLitePath:  v.GetString(KeyStorageSQLitePath),
			PostgresDSN: v.GetString(KeyStoragePostgresDSN),
		},
		Blob: blob.Config{
			Driver: blob.Driver(v.GetString(KeyBlobDriver)),
			FSRoot: v.GetString(KeyBlobFSRoot),
			S3: blob.S3Config{
				Bucket:          v.GetString(KeyBlobS3Bucket),
				Region:          v.GetString(KeyBlobS3Region),
				Endpoint:        v.GetString(KeyBlobS3Endpoint),
				PathStyle:       v.GetBool(KeyBlobS3PathStyle),
				AccessKeyID:     v.GetString(KeyBlobS3AccessKey),
				SecretAccessKey: v.GetString(KeyBlobS3SecretKey),
			},
		},
		URLExpiry: v.GetDuration(KeyBlobURLExpiry),
		Settings: SettingsConfig{
			Backend:  strings.ToLower(v.GetString(KeySettingsBackend)),
			Debounce: v.GetDuration(KeySettingsDebounce),
			Redis: redis.Config{
				Address:   v.GetString(KeySettingsRedisAddr),
				Password:  v.GetString(KeySettingsRedisPassword),
				DB:        v.GetInt(KeySettingsRedisDB),
				KeyPrefix: v.GetString(KeySettingsRedisPrefix),
			},
		},
		Gemini: GeminiConfig{
			APIKey: v.GetString(KeyGeminiAPIKey),
			Model:  v.GetString(KeyGeminiModel),
		},
		UserEmail:    strings.TrimSpace(v.GetString(KeyUserEmail)),
		ConfigSource: v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports inconsistent settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%s is required for the postgres driver", KeyStoragePostgresDSN)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("%s is required for the s3 blob driver", KeyBlobS3Bucket)
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	switch c.Settings.Backend {
	case SettingsDocument, SettingsRedis:
	default:
		return fmt.Errorf("unknown settings backend %q", c.Settings.Backend)
	}
	return nil
}

// Package config provides configuration loading and parsing for drift.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Configuration errors.
var (
	ErrConfigNotFound    = errors.New("configuration file not found")
	ErrInvalidFormat     = errors.New("invalid configuration format")
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
	ErrValidationFailed  = errors.New("configuration validation failed")
)

// Backend selects the repository backend.
type Backend string

const (
	// BackendFilesystem stores patterns as per-category JSON shards.
	BackendFilesystem Backend = "filesystem"

	// BackendBadger stores patterns in an embedded BadgerDB database.
	BackendBadger Backend = "badger"

	// BackendMemory keeps patterns in memory only.
	BackendMemory Backend = "memory"
)

// Config is the drift configuration.
type Config struct {
	// Root is the project directory being scanned. Pattern storage
	// lives under <root>/.drift.
	Root string `yaml:"root" json:"root"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StorageConfig configures the repository backend.
type StorageConfig struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// AutoMigrate imports a legacy status-partitioned layout on
	// startup.
	AutoMigrate bool `yaml:"autoMigrate" json:"autoMigrate"`

	// KeepLegacyFiles leaves legacy files in place after migration.
	KeepLegacyFiles bool `yaml:"keepLegacyFiles" json:"keepLegacyFiles"`
}

// CacheConfig configures the caching decorator and the service status
// cache.
type CacheConfig struct {
	// Enabled wraps the repository in the caching decorator.
	Enabled bool `yaml:"enabled" json:"enabled"`

	PatternTTL time.Duration `yaml:"patternTtl" json:"patternTtl"`
	QueryTTL   time.Duration `yaml:"queryTtl" json:"queryTtl"`
	StatusTTL  time.Duration `yaml:"statusTtl" json:"statusTtl"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Root: ".",
		Storage: StorageConfig{
			Backend:     BackendFilesystem,
			AutoMigrate: true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			PatternTTL: 30 * time.Second,
			QueryTTL:   10 * time.Second,
			StatusTTL:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFilesystem, BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrValidationFailed, c.Storage.Backend)
	}

	if c.Root == "" {
		return fmt.Errorf("%w: root must not be empty", ErrValidationFailed)
	}

	if c.Cache.PatternTTL < 0 || c.Cache.QueryTTL < 0 || c.Cache.StatusTTL < 0 {
		return fmt.Errorf("%w: cache TTLs must not be negative", ErrValidationFailed)
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrValidationFailed, c.Logging.Format)
	}

	return nil
}

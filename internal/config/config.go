// Package config provides configuration types for the RoleGate engine.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for the engine.
type Config struct {
	// Directory selects and configures the directory store backend.
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`

	// Session configures session housekeeping.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Cache configures the access-decision cache.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// DevMode enables development features (verbose logging, etc).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// DirectoryConfig selects where role, user, and permission records
// live.
type DirectoryConfig struct {
	// Backend is the store implementation: "sqlite", "snapshot", or
	// "memory".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,directory_backend"`

	// SQLitePath is the database file for the sqlite backend.
	// ":memory:" is accepted for ephemeral directories.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`

	// SnapshotPath is the YAML snapshot file for the snapshot backend.
	SnapshotPath string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
}

// SessionConfig configures session housekeeping.
type SessionConfig struct {
	// CleanupInterval is the period of the expired-session sweep.
	// Default: 1 minute.
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// CacheConfig configures the access-decision cache.
type CacheConfig struct {
	// DecisionCacheSize is the maximum number of cached access
	// decisions. Default: 1000.
	DecisionCacheSize int `yaml:"decision_cache_size" mapstructure:"decision_cache_size" validate:"omitempty,gte=0"`
}

// Defaults applied by Load when fields are unset.
const (
	DefaultCleanupInterval   = time.Minute
	DefaultDecisionCacheSize = 1000
)

// Load reads the configuration from Viper into a validated Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Directory.Backend == "" {
		c.Directory.Backend = "memory"
	}
	if c.Session.CleanupInterval == 0 {
		c.Session.CleanupInterval = DefaultCleanupInterval
	}
	if c.Cache.DecisionCacheSize == 0 {
		c.Cache.DecisionCacheSize = DefaultDecisionCacheSize
	}
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig             `mapstructure:"server"`
	Auth     AuthConfig               `mapstructure:"auth"`
	Search   SearchConfig             `mapstructure:"search"`
	Cache    CacheConfig              `mapstructure:"cache"`
	Adapters map[string]AdapterConfig `mapstructure:"adapters"`
	Archive  ArchiveConfig            `mapstructure:"archive"`
	PubSub   PubSubConfig             `mapstructure:"pubsub"`
	Logging  LoggingConfig            `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SearchConfig governs orchestrator admission and timing defaults.
type SearchConfig struct {
	MaxConcurrent        int `mapstructure:"max_concurrent"`
	SourceTimeoutSeconds int `mapstructure:"source_timeout_seconds"`
	CacheTTLSeconds      int `mapstructure:"cache_ttl_seconds"`
	RetentionSeconds     int `mapstructure:"retention_seconds"`
	HealthProbeSeconds   int `mapstructure:"health_probe_seconds"`
}

// CacheConfig bounds the result cache.
type CacheConfig struct {
	MaxEntries           int `mapstructure:"max_entries"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

// AdapterConfig declares one external flight source.
type AdapterConfig struct {
	Kind           string  `mapstructure:"kind"`
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Seed           int64   `mapstructure:"seed"`
}

// ArchiveConfig selects the optional archiver for completed searches.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for terminal-event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FLIGHTSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("search.max_concurrent", 10)
	v.SetDefault("search.source_timeout_seconds", 30)
	v.SetDefault("search.cache_ttl_seconds", 300)
	v.SetDefault("search.retention_seconds", 900)
	v.SetDefault("search.health_probe_seconds", 30)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.sweep_interval_seconds", 60)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "searches")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Search.MaxConcurrent <= 0 {
		return fmt.Errorf("search.max_concurrent must be > 0")
	}
	if c.Search.SourceTimeoutSeconds <= 0 {
		return fmt.Errorf("search.source_timeout_seconds must be > 0")
	}
	if c.Search.CacheTTLSeconds <= 0 {
		return fmt.Errorf("search.cache_ttl_seconds must be > 0")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	for name, a := range c.Adapters {
		switch a.Kind {
		case "rest":
			if a.BaseURL == "" {
				return fmt.Errorf("adapters.%s.base_url must be set for rest adapters", name)
			}
		case "synthetic", "":
		default:
			return fmt.Errorf("adapters.%s.kind %q is not supported", name, a.Kind)
		}
	}
	switch c.Archive.Provider {
	case "none", "noop", "":
	case "postgres":
		if c.Archive.DSN == "" {
			return fmt.Errorf("archive.dsn must be set when archive.provider is postgres")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.provider is gcs")
		}
	default:
		return fmt.Errorf("archive.provider %q is not supported", c.Archive.Provider)
	}
	return nil
}

// SourceTimeout converts the configured per-source budget to a duration.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Search.SourceTimeoutSeconds) * time.Second
}

// CacheTTL converts the configured raw-view lifetime to a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Search.CacheTTLSeconds) * time.Second
}

// Retention converts the terminal-search retention window to a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Search.RetentionSeconds) * time.Second
}

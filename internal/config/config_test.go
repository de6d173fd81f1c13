package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies a config with no file and no environment comes
// up with the documented defaults.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 10, cfg.Search.MaxConcurrent)
	require.Equal(t, 30*time.Second, cfg.SourceTimeout())
	require.Equal(t, 5*time.Minute, cfg.CacheTTL())
	require.Equal(t, 15*time.Minute, cfg.Retention())
	require.Equal(t, 256, cfg.Cache.MaxEntries)
	require.Equal(t, "none", cfg.Archive.Provider)
	require.False(t, cfg.Auth.Enabled)
}

// TestLoadEnvironmentOverride verifies FLIGHTSEARCH_* variables take
// precedence over defaults.
func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("FLIGHTSEARCH_SERVER_PORT", "9191")
	t.Setenv("FLIGHTSEARCH_SEARCH_SOURCE_TIMEOUT_SECONDS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, 7*time.Second, cfg.SourceTimeout())
}

// TestLoadFromFile verifies YAML files round-trip into the config struct.
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
search:
  max_concurrent: 3
adapters:
  duffel:
    kind: rest
    base_url: https://api.example.com
    rps: 5
  local:
    kind: synthetic
    seed: 42
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, 3, cfg.Search.MaxConcurrent)
	require.Len(t, cfg.Adapters, 2)
	require.Equal(t, "rest", cfg.Adapters["duffel"].Kind)
	require.Equal(t, "https://api.example.com", cfg.Adapters["duffel"].BaseURL)
	require.Equal(t, int64(42), cfg.Adapters["local"].Seed)
}

// TestLoadMissingFile verifies a bad path is reported instead of silently
// falling back to defaults.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

// TestValidateRejections covers the guard rails.
func TestValidateRejections(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero max concurrent", func(c *Config) { c.Search.MaxConcurrent = 0 }},
		{"zero source timeout", func(c *Config) { c.Search.SourceTimeoutSeconds = 0 }},
		{"zero cache ttl", func(c *Config) { c.Search.CacheTTLSeconds = 0 }},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }},
		{"rest adapter without base url", func(c *Config) {
			c.Adapters = map[string]AdapterConfig{"bad": {Kind: "rest"}}
		}},
		{"unknown adapter kind", func(c *Config) {
			c.Adapters = map[string]AdapterConfig{"bad": {Kind: "carrier-pigeon"}}
		}},
		{"postgres without dsn", func(c *Config) { c.Archive.Provider = "postgres" }},
		{"gcs without bucket", func(c *Config) { c.Archive.Provider = "gcs" }},
		{"unknown archive provider", func(c *Config) { c.Archive.Provider = "tape" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, FlushOnMutation, cfg.Indexer.FlushPolicy)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 200, cfg.Search.SnippetLength)
	assert.Equal(t, filepath.Join("data", "search_index.json"), cfg.Indexer.SnapshotPath())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
indexer:
  dataDir: /var/lib/pageindex
  flushPolicy: interval
  flushInterval: 2s
search:
  defaultLimit: 5
redis:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("PI_REDIS_ADDR", "cache:6380")
	t.Setenv("PI_LOGGING_LEVEL", "debug")
	t.Setenv("PI_SERVER_PORT", "7801")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/pageindex/search_index.json", cfg.Indexer.SnapshotPath())
	assert.Equal(t, FlushInterval, cfg.Indexer.FlushPolicy)
	assert.Equal(t, 2*time.Second, cfg.Indexer.FlushInterval)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 7801, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown flush policy", func(c *Config) { c.Indexer.FlushPolicy = "sometimes" }},
		{"interval without duration", func(c *Config) {
			c.Indexer.FlushPolicy = FlushInterval
			c.Indexer.FlushInterval = 0
		}},
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxResults = 3 }},
		{"zero snippet", func(c *Config) { c.Search.SnippetLength = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
		{"postgres without snapshot interval", func(c *Config) {
			c.Postgres.Enabled = true
			c.Analytics.SnapshotInterval = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

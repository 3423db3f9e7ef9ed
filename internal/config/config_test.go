package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.ProviderState.Backend)
	assert.Equal(t, 3600, cfg.ProviderState.DefaultRestrictionSecs)
	assert.Equal(t, time.Second, cfg.Jobs.ItemDelay())
	assert.Equal(t, 3, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, time.Duration(0), cfg.Jobs.StaleAfter())
	assert.Equal(t, 72*time.Hour, cfg.Jobs.FollowupAfter())
	assert.False(t, cfg.Jobs.AllowUnverifiedDrafts)
	assert.Equal(t, "https://api.dataforseo.com", cfg.DataForSEO.BaseURL)
	assert.Equal(t, "https://api.hunter.io/v2", cfg.Hunter.BaseURL)
	assert.Equal(t, "anthropic", cfg.Drafting.Provider)
	assert.Equal(t, []string{"/contact", "/contact-us", "/about"}, cfg.Scrape.ContactPaths)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: outreach.db
provider_state:
  backend: redis
  redis_url: redis://localhost:6379/0
jobs:
  item_delay_ms: 250
  stale_after_mins: 30
  allow_unverified_drafts: true
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "redis", cfg.ProviderState.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Jobs.ItemDelay())
	assert.Equal(t, 30*time.Minute, cfg.Jobs.StaleAfter())
	assert.True(t, cfg.Jobs.AllowUnverifiedDrafts)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values.
	assert.Equal(t, 3, cfg.Jobs.MaxConcurrent)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("OUTREACH_STORE_DRIVER", "postgres")
	t.Setenv("OUTREACH_LOG_LEVEL", "warn")
	t.Setenv("OUTREACH_HUNTER_KEY", "hk")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "hk", cfg.Hunter.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "sqlite"
	assert.NoError(t, cfg.Validate("store"))

	cfg.ProviderState.Backend = "redis"
	assert.ErrorContains(t, cfg.Validate("provider_state"), "redis_url")
	cfg.ProviderState.Backend = "etcd"
	assert.ErrorContains(t, cfg.Validate("provider_state"), "memory or redis")

	cfg.Jobs.MaxConcurrent = 0
	cfg.Jobs.StaleAfterMins = -1
	err = cfg.Validate("jobs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent")
	assert.Contains(t, err.Error(), "stale_after_mins")

	assert.NoError(t, cfg.Validate("unknown"))
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

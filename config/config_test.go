package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embercache/ember/cache"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 300*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, 5*time.Second, cfg.Cache.OpTimeout)
	assert.Equal(t, "cache", cfg.Cache.FileRoot)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EMBER_CACHE_BACKEND", "redis")
	t.Setenv("EMBER_CACHE_TTL", "90s")
	t.Setenv("EMBER_REDIS_URL", "redis://example:6379/2")
	t.Setenv("EMBER_REDIS_PREFIX", "app")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cache.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, "redis://example:6379/2", cfg.Cache.RedisURL)
	assert.Equal(t, "app", cfg.Cache.RedisPrefix)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ember.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  backend: file
  ttl: 10m
  file_path: /tmp/ember-cache
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cache.BackendFile, cfg.Cache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "/tmp/ember-cache", cfg.Cache.FileRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("EMBER_CACHE_BACKEND", "memcached")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("EMBER_CACHE_TTL", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadDayDurations(t *testing.T) {
	t.Setenv("EMBER_CACHE_TTL", "1d")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Cache.DefaultTTL)
}

func TestLogger(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	log, err := cfg.Logger()
	require.NoError(t, err)
	assert.NotNil(t, log)

	cfg.LogLevel = "shouting"
	_, err = cfg.Logger()
	assert.Error(t, err)
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 60, cfg.Server.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Empty(t, cfg.Server.URL) // Must be configured explicitly
	assert.False(t, cfg.Debug)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SATCHEL_SERVER_URL", "https://school.example.com")
	t.Setenv("SATCHEL_DATA_DIR", t.TempDir())
	t.Setenv("SATCHEL_SYNC_INTERVAL", "2m")
	t.Setenv("SATCHEL_RATE_LIMIT", "120")
	t.Setenv("SATCHEL_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://school.example.com", cfg.Server.URL)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsBadInterval(t *testing.T) {
	t.Setenv("SATCHEL_DATA_DIR", t.TempDir())
	t.Setenv("SATCHEL_SYNC_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadRateLimit(t *testing.T) {
	t.Setenv("SATCHEL_DATA_DIR", t.TempDir())
	t.Setenv("SATCHEL_RATE_LIMIT", "-3")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadCreatesBaseDir(t *testing.T) {
	dir := t.TempDir() + "/nested/satchel"
	t.Setenv("SATCHEL_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.BaseDir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetPaths(t *testing.T) {
	cfg := &Config{BaseDir: "/tmp/satchel"}
	paths := GetPaths(cfg)

	assert.Equal(t, "/tmp/satchel/satchel.db", paths.Database)
	assert.Equal(t, "/tmp/satchel/logs", paths.LogDir)
}

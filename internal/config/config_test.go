package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cafeplease", cfg.Store.KeyPrefix)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, "manager-1", cfg.Bootstrap.AdminID)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SCHEDULER_INTERVAL", "2s")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.Interval)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_KEY_PREFIX=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STORE_KEY_PREFIX") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Store.KeyPrefix)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SCHEDULER_INTERVAL", "0s")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

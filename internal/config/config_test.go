package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "PORT", "WORKER_COUNT", "SESSION_TTL", "SWEEP_INTERVAL", "DRAG_THRESHOLD", "CORS_ORIGINS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("DRAG_THRESHOLD", "5.5")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://board.example.com")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 5.5, cfg.DragThreshold)
	assert.Equal(t, []string{"http://localhost:5173", "https://board.example.com"}, cfg.CORSOrigins)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kanban.toml")
	err := os.WriteFile(path, []byte(`
port = "7000"
worker_count = 2
session_ttl = "90m"
drag_threshold = 4.0
cors_origins = ["http://localhost:3000"]
`), 0o644)
	require.NoError(t, err)

	t.Run("file values", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "7000", cfg.Port)
		assert.Equal(t, 2, cfg.WorkerCount)
		assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
		assert.Equal(t, time.Minute, cfg.SweepInterval)
		assert.Equal(t, 4.0, cfg.DragThreshold)
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("PORT", "7001")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "7001", cfg.Port)
	})

	t.Run("path from env", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", path)
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.WorkerCount)
	})
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte(`session_ttl = "soon"`), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv("WORKER_COUNT", "0")
	_, err = Load("")
	assert.Error(t, err)
}

func TestConfig_TOML(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Port = "7070"
	cfg.SessionTTL = 45 * time.Minute
	cfg.CORSOrigins = []string{"http://localhost:5173"}

	data, err := cfg.TOML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "45m0s")

	path := filepath.Join(t.TempDir(), "dump.toml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

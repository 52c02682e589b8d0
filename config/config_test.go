package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firasghr/GoDispatcher/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.PoolSize <= 0 {
		t.Errorf("PoolSize should be > 0, got %d", cfg.PoolSize)
	}
	if cfg.ListenAddr == "" {
		t.Error("ListenAddr should not be empty")
	}
	if time.Duration(cfg.SleepDuration) != 5*time.Second {
		t.Errorf("SleepDuration: got %v, want 5s", time.Duration(cfg.SleepDuration))
	}
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	raw := map[string]interface{}{
		"listen_addr":     "127.0.0.1:9000",
		"pool_size":       8,
		"max_connections": 2,
		"sleep_duration":  "250ms",
		"read_timeout":    int64(3 * time.Second),
		"log_level":       "debug",
	}
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	path := writeFile(t, "config.json", string(b))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, 2, cfg.MaxConnections)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.SleepDuration))
	assert.Equal(t, 3*time.Second, time.Duration(cfg.ReadTimeout))
	assert.Equal(t, "debug", cfg.LogLevel)
	// Unset fields keep their defaults.
	assert.Equal(t, "public", cfg.PublicDir)
}

func TestLoadConfig_ValidINI(t *testing.T) {
	path := writeFile(t, "config.ini", `
[server]
listenAddr = 0.0.0.0:7000
maxConnections = 2
maxOpenConns = 16
sleepDuration = 1s
compression = false

[pool]
size = 6

[log]
level = warn
reportCaller = true
reportInterval = 1m

[dashboard]
addr =
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.ListenAddr)
	assert.Equal(t, 2, cfg.MaxConnections)
	assert.Equal(t, 16, cfg.MaxOpenConns)
	assert.Equal(t, time.Second, time.Duration(cfg.SleepDuration))
	assert.False(t, cfg.Compression)
	assert.Equal(t, 6, cfg.PoolSize)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.LogReportCaller)
	assert.Equal(t, time.Minute, time.Duration(cfg.ReportInterval))
	assert.Empty(t, cfg.DashboardAddr)
}

func TestLoadConfig_BadINIDuration(t *testing.T) {
	path := writeFile(t, "config.ini", "[server]\nsleepDuration = soon\n")
	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidPoolSize(t *testing.T) {
	path := writeFile(t, "config.json", `{"pool_size": 0}`)
	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_size")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig("/nonexistent/path/config.json")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeFile(t, "bad.json", "{not valid json}")
	_, err := config.LoadConfig(path)
	if err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	path := writeFile(t, "typo.json", `{"pool_sise": 3}`)
	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, name := range []string{
		"TELEGRAM_TOKEN", "DB_DSN", "ENV", "METRICS_ADDR", "DEFAULT_TIMEZONE",
		"RECOMMEND_WINDOW_DAYS", "RECOMMEND_COUNT", "MONITOR_INTERVAL", "STALE_AFTER",
	} {
		t.Setenv(name, kv[name])
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{"DB_DSN": "postgres://localhost/coach"})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 14, cfg.RecommendWindowDays)
	assert.Equal(t, 5, cfg.RecommendCount)
	assert.Equal(t, 24*time.Hour, cfg.StaleAfter)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.False(t, cfg.EnvFileLoaded)
	assert.ErrorIs(t, cfg.RequireTelegram(), ErrTelegramTokenMissing)
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"DB_DSN":                "postgres://localhost/coach",
		"TELEGRAM_TOKEN":        "123:abc",
		"DEFAULT_TIMEZONE":      "Europe/Moscow",
		"RECOMMEND_WINDOW_DAYS": "7",
		"MONITOR_INTERVAL":      "1m",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RecommendWindowDays)
	assert.Equal(t, time.Minute, cfg.MonitorInterval)
	assert.Equal(t, "Europe/Moscow", cfg.Location().String())
	assert.NoError(t, cfg.RequireTelegram())
}

func TestLoadReportsAllProblems(t *testing.T) {
	setEnv(t, map[string]string{
		"RECOMMEND_COUNT":  "zero",
		"STALE_AFTER":      "-1h",
		"DEFAULT_TIMEZONE": "Mars/Olympus",
	})

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
	assert.Contains(t, err.Error(), "RECOMMEND_COUNT")
	assert.Contains(t, err.Error(), "STALE_AFTER")
	assert.Contains(t, err.Error(), "DEFAULT_TIMEZONE")
}

func TestLoadReadsEnvFile(t *testing.T) {
	setEnv(t, nil)
	require.NoError(t, os.Unsetenv("DB_DSN"))
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("DB_DSN=postgres://file/coach\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.EnvFileLoaded)
	assert.Equal(t, "postgres://file/coach", cfg.DBDSN)
}

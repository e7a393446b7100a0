package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"TELEGRAM_TOKEN", "DATABASE_URL", "REPORT_INTERVAL_HOURS",
	"QUEST_RESET_TIME", "TIMEZONE", "LOG_LEVEL",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "study_garden.db", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.ReportHours)
	assert.Equal(t, 5*time.Hour, cfg.ReportInterval)
	assert.Equal(t, "00:00", cfg.QuestResetTime)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Error(t, cfg.RequireToken())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "data/garden.db")
	t.Setenv("REPORT_INTERVAL_HOURS", "2")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireToken())
	assert.Equal(t, "data/garden.db", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Hour, cfg.ReportInterval)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_url: file.db\nreport_interval_hours: 8\nquest_reset_time: \"06:30\"\n"), 0o600))
	t.Setenv("REPORT_INTERVAL_HOURS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file.db", cfg.DatabaseURL)
	assert.Equal(t, "06:30", cfg.QuestResetTime)
	assert.Equal(t, 3, cfg.ReportHours)
	assert.Equal(t, "Local", cfg.Timezone)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("REPORT_INTERVAL_HOURS", "-1")
	_, err := Load("")
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load("")
	assert.Error(t, err)

	clearEnv(t)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("user", 7).Debug("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "user=7")

	assert.Equal(t, logrus.InfoLevel, NewLogger("loud", &buf).GetLevel())
	assert.Equal(t, logrus.WarnLevel, NewLogger(" warn ", &buf).GetLevel())
}

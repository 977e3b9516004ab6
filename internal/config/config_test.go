package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, ``)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Engine.Workers)
	assert.Equal(t, DefaultQueueCapacity, cfg.Engine.QueueCapacity)
	assert.Equal(t, DefaultMaxAttempts, cfg.Engine.MaxAttempts)
	assert.Equal(t, DefaultRetentionWindowHours, cfg.Retention.WindowHours)
	assert.Equal(t, DefaultCleanupIntervalMinutes, cfg.Retention.CleanupIntervalMinutes)
	assert.Equal(t, DefaultUrgentTimeoutSeconds, cfg.Urgent.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_ParsesValues(t *testing.T) {
	path := writeConfig(t, `
[engine]
workers = 2
queue_capacity = 10
max_attempts = 3

[retention]
window_hours = 48
cleanup_interval_minutes = 30

[urgent]
timeout_seconds = 5

[logging]
level = "debug"
format = "json"
output = "stderr"

[metrics]
enabled = true
listen_addr = ":9191"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, 10, cfg.Engine.QueueCapacity)
	assert.Equal(t, 3, cfg.Engine.MaxAttempts)
	assert.Equal(t, 48, cfg.Retention.WindowHours)
	assert.Equal(t, 30, cfg.Retention.CleanupIntervalMinutes)
	assert.Equal(t, 5, cfg.Urgent.TimeoutSeconds)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9191", cfg.Metrics.ListenAddr)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("INSIGHTD_LOG_PATH", "/tmp/insightd.log")

	path := writeConfig(t, `
[logging]
output = "${INSIGHTD_LOG_PATH}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/insightd.log", cfg.Logging.Output)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Engine.Workers = -1
	cfg.Engine.QueueCapacity = 0
	cfg.Engine.MaxAttempts = 0
	cfg.Retention.WindowHours = 0
	cfg.Urgent.TimeoutSeconds = 0
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	errs := cfg.Validate()
	assert.Len(t, errs, 7)
}

func TestValidate_MetricsAddrRequiredWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddr = ""

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "metrics.listen_addr")
}

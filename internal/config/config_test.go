package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := process(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, DriverPlaywright, cfg.BrowserDriver)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 15*time.Second, cfg.StepTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.SweepGrace)
	assert.Equal(t, "run-artifacts", cfg.S3.Bucket)
	assert.True(t, cfg.S3.ForcePathStyle)
	assert.False(t, cfg.S3.Enabled())
	assert.Error(t, cfg.RequireDB())
	assert.Error(t, cfg.RequireNATS())
}

func TestOverrides(t *testing.T) {
	cfg, err := process(context.Background(), envconfig.MapLookuper(map[string]string{
		"BROWSER_DRIVER":     "chromedp",
		"HEADLESS":           "false",
		"RUN_TIMEOUT":        "90s",
		"S3_ENDPOINT":        "minio:9000",
		"S3_DISABLE_TLS":     "true",
		"DB_DSN":             "postgres://localhost/engine",
		"NATS_URL":           "nats://localhost:4222",
		"WORKER_CONCURRENCY": "8",
		"ALLOWED_ORIGINS":    "https://app.test,https://admin.test",
		"SWEEP_INTERVAL":     "30s",
	}))
	require.NoError(t, err)

	assert.Equal(t, DriverChromedp, cfg.BrowserDriver)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
	assert.True(t, cfg.S3.Enabled())
	assert.Equal(t, "minio:9000", cfg.S3.Store().Endpoint)
	assert.True(t, cfg.S3.Store().DisableTLS)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, []string{"https://app.test", "https://admin.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.NoError(t, cfg.RequireDB())
	assert.NoError(t, cfg.RequireNATS())
}

func TestRejectsUnknownDriver(t *testing.T) {
	_, err := process(context.Background(), envconfig.MapLookuper(map[string]string{"BROWSER_DRIVER": "selenium"}))
	assert.ErrorContains(t, err, "BROWSER_DRIVER")
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SELECTORS_FILE=/etc/run-engine/selectors.yaml\n"), 0o600))
	t.Setenv("SELECTORS_FILE", "")
	require.NoError(t, os.Unsetenv("SELECTORS_FILE"))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/run-engine/selectors.yaml", cfg.SelectorsFile)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBaseEnv pins the keys a developer .env could otherwise leak into the test.
func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "DB_DRIVER", "DB_HOST", "DB_NAME", "CACHE_HOST",
		"WEBHOOK_DISPATCH_MODE", "WEBHOOK_MAX_RETRIES", "S3_DEADLETTER_ENABLED",
		"S3_BUCKET_NAME", "S3_REGION",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_NAME", "coinfox")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("WEBHOOK_DISPATCH_MODE", "inline")
	t.Setenv("WEBHOOK_MAX_RETRIES", "5")
	t.Setenv("S3_DEADLETTER_ENABLED", "false")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Webhooks.MaxRetries)
	assert.Equal(t, 100, cfg.Webhooks.SweepBatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Webhooks.SweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.Webhooks.StalePending)
	assert.Equal(t, 30*time.Second, cfg.Webhooks.HandlerTimeout)
	assert.Equal(t, DispatchModeInline, cfg.Webhooks.DispatchMode)
	assert.Equal(t, 10, cfg.Cron.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.Cron.RateLimitWindow)
	assert.Equal(t, "deadletter", cfg.DeadLetter.Prefix)
	assert.Equal(t, "lemonsqueezy", cfg.Billing.Provider)
	assert.False(t, cfg.Cache.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WEBHOOK_MAX_RETRIES", "8")
	t.Setenv("WEBHOOK_SWEEP_INTERVAL_SECONDS", "0")
	t.Setenv("CACHE_HOST", "dragonfly")
	t.Setenv("CACHE_PORT", "6380")
	t.Setenv("WEBHOOK_DISPATCH_MODE", "queue")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Webhooks.MaxRetries)
	assert.Zero(t, cfg.Webhooks.SweepInterval)
	assert.Equal(t, DispatchModeQueue, cfg.Webhooks.DispatchMode)
	assert.True(t, cfg.Cache.Enabled())
	assert.Equal(t, "dragonfly:6380", cfg.Cache.Addr())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "queue without cache", env: map[string]string{"WEBHOOK_DISPATCH_MODE": "queue"}},
		{name: "unknown dispatch mode", env: map[string]string{"WEBHOOK_DISPATCH_MODE": "kafka"}},
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "oracle"}},
		{name: "zero retries", env: map[string]string{"WEBHOOK_MAX_RETRIES": "0"}},
		{name: "dead letter without bucket", env: map[string]string{"S3_DEADLETTER_ENABLED": "true"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_SQLiteNeedsNoHost(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "coinfox.db", cfg.Database.Path)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE_BACKEND", "DATABASE_URL", "BATCH_MAX_OPS", "CRON_SPEC_RECONCILE",
		"RECONCILE_TIMEOUT", "TIMEZONE", "TELEGRAM_TOKEN", "ADMIN_TELEGRAM_ID",
		"LOG_LEVEL", "ENVIRONMENT", "METRICS_ADDR", "TRACE_EXPORTER", "SERVICE_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "postgres://localhost/mealsync")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, BackendPostgres, cfg.StoreBackend)
		assert.Equal(t, 500, cfg.BatchMaxOps)
		assert.Equal(t, "0 3 * * *", cfg.CronSpecSweep)
		assert.Equal(t, 10*time.Minute, cfg.SweepTimeout)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "none", cfg.TraceExporter)
		assert.Equal(t, "mealsync", cfg.ServiceName)
	})

	t.Run("MemoryBackendNeedsNoDatabase", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "MEMORY")
		t.Setenv("BATCH_MAX_OPS", "50")
		t.Setenv("TIMEZONE", "Europe/Rome")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, BackendMemory, cfg.StoreBackend)
		assert.Equal(t, 50, cfg.BatchMaxOps)
		assert.Equal(t, "Europe/Rome", cfg.Location().String())
	})

	t.Run("MissingDatabaseURL", func(t *testing.T) {
		clearEnv(t)
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DatabaseURL")
	})

	t.Run("TokenRequiresAdmin", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("TELEGRAM_TOKEN", "123:abc")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AdminTelegramID")

		t.Setenv("ADMIN_TELEGRAM_ID", "42")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, int64(42), cfg.AdminTelegramID)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		cases := map[string]string{
			"BATCH_MAX_OPS":     "zero",
			"RECONCILE_TIMEOUT": "soon",
			"TIMEZONE":          "Mars/Olympus",
			"ADMIN_TELEGRAM_ID": "admin",
			"TRACE_EXPORTER":    "jaeger",
			"STORE_BACKEND":     "firestore",
		}
		for key, value := range cases {
			t.Run(key, func(t *testing.T) {
				clearEnv(t)
				t.Setenv("STORE_BACKEND", "memory")
				t.Setenv(key, value)
				_, err := Load()
				assert.Error(t, err)
			})
		}
	})

	t.Run("BatchLimitMustBePositive", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("BATCH_MAX_OPS", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}

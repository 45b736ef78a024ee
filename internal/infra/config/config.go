package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	StoreBackend    string        `validate:"oneof=postgres memory"`
	DatabaseURL     string        `validate:"required_if=StoreBackend postgres"`
	BatchMaxOps     int           `validate:"min=1"` // store limit on ops per atomic batch
	CronSpecSweep   string        `validate:"required"`
	SweepTimeout    time.Duration `validate:"gt=0"`
	Timezone        string        `validate:"required"`
	TelegramToken   string
	AdminTelegramID int64  `validate:"required_with=TelegramToken"`
	LogLevel        string `validate:"oneof=trace debug info warn warning error fatal panic"`
	Environment     string
	MetricsAddr     string // empty disables the /metrics listener
	TraceExporter   string `validate:"oneof=none stdout"`
	ServiceName     string
}

var validate = validator.New()

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.StoreBackend = strings.ToLower(envOr("STORE_BACKEND", BackendPostgres))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.BatchMaxOps, err = strconv.Atoi(envOr("BATCH_MAX_OPS", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid BATCH_MAX_OPS: %w", err)
	}

	cfg.CronSpecSweep = envOr("CRON_SPEC_RECONCILE", "0 3 * * *") // Default: 03:00 daily

	cfg.SweepTimeout, err = time.ParseDuration(envOr("RECONCILE_TIMEOUT", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_TIMEOUT: %w", err)
	}

	cfg.Timezone = envOr("TIMEZONE", "Local")
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.TraceExporter = strings.ToLower(envOr("TRACE_EXPORTER", "none"))
	cfg.ServiceName = envOr("SERVICE_NAME", "mealsync")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Location returns the configured time zone used to decide what "today" is.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

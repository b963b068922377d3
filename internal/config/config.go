// Package config loads process configuration from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the full process configuration.
type Config struct {
	DatabaseURL string
	Port        string
	Env         string
	LogLevel    string
	JWTSecret   string

	DBMaxConns int32
	DBMinConns int32

	DefaultSalesPercent decimal.Decimal

	EventBufferSize int
	EventWorkers    int

	// ApprovalBroadcastRule is a CEL expression over to_status, from_status and entity_type.
	ApprovalBroadcastRule string

	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration

	ShutdownTimeout time.Duration
	CleanupInterval time.Duration
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads the environment. DATABASE_URL is required.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		Port:                  getEnv("APP_PORT", "8080"),
		Env:                   getEnv("APP_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		JWTSecret:             getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		DBMaxConns:            int32(getEnvInt("DB_MAX_CONNS", 20)),
		DBMinConns:            int32(getEnvInt("DB_MIN_CONNS", 2)),
		DefaultSalesPercent:   getEnvDecimal("DEFAULT_SALES_COMMISSION_PERCENT", decimal.NewFromInt(5)),
		EventBufferSize:       getEnvInt("EVENT_BUFFER_SIZE", 1024),
		EventWorkers:          getEnvInt("EVENT_WORKERS", 2),
		ApprovalBroadcastRule: getEnv("APPROVAL_BROADCAST_RULE", `to_status == "step4"`),
		IdempotencyEnabled:    getEnv("IDEMPOTENCY_ENABLED", "false") == "true",
		IdempotencyTTL:        getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		ShutdownTimeout:       getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		CleanupInterval:       getEnvDuration("CLEANUP_INTERVAL", time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("required environment variable DATABASE_URL not set")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

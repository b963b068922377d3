package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldops")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "5", cfg.DefaultSalesPercent.String())
	assert.Equal(t, `to_status == "step4"`, cfg.ApprovalBroadcastRule)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.False(t, cfg.IdempotencyEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldops")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DEFAULT_SALES_COMMISSION_PERCENT", "7.5")
	t.Setenv("EVENT_WORKERS", "4")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("IDEMPOTENCY_ENABLED", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "7.5", cfg.DefaultSalesPercent.String())
	assert.Equal(t, 4, cfg.EventWorkers)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.IdempotencyEnabled)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldops")
	t.Setenv("EVENT_BUFFER_SIZE", "lots")
	t.Setenv("DEFAULT_SALES_COMMISSION_PERCENT", "five")
	t.Setenv("IDEMPOTENCY_TTL", "forever")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.EventBufferSize)
	assert.Equal(t, "5", cfg.DefaultSalesPercent.String())
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()

	assert.Error(t, err)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgres://localhost/vending")
	for _, k := range []string{"SERVER_PORT", "ENVIRONMENT", "REDIS_ADDR", "SESSION_LEASE_TTL", "KAFKA_BROKERS",
		"KAFKA_TOPIC", "PAYMENT_RATE_LIMIT", "PAYMENT_RATE_BURST", "SETTLEMENT_TIMEOUT", "MACHINE_ID", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.Development())
	assert.Equal(t, "vending-orders", cfg.KafkaTopic)
	assert.Equal(t, 90*time.Second, cfg.SessionLeaseTTL)
	assert.Equal(t, 10*time.Second, cfg.SettlementTimeout)
	assert.Equal(t, 40, cfg.PaymentRateBurst)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgres://localhost/vending")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SESSION_LEASE_TTL", "30s")
	t.Setenv("PAYMENT_RATE_LIMIT", "2.5")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://kiosk.local")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Development())
	assert.Equal(t, 30*time.Second, cfg.SessionLeaseTTL)
	assert.Equal(t, 2.5, cfg.PaymentRateLimit)
	assert.Equal(t, []string{"http://localhost:3000", "https://kiosk.local"}, cfg.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"missing db", "DB_SOURCE", ""},
		{"bad duration", "SETTLEMENT_TIMEOUT", "soon"},
		{"negative duration", "SESSION_LEASE_TTL", "-1s"},
		{"bad burst", "PAYMENT_RATE_BURST", "lots"},
		{"zero rate", "PAYMENT_RATE_LIMIT", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_SOURCE", "postgres://localhost/vending")
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBSource string
	Port     string
	Env      string

	// MachineID scopes the session lease when it lives in Redis.
	MachineID       string
	RedisAddr       string
	SessionLeaseTTL time.Duration

	KafkaBrokers string
	KafkaTopic   string

	PaymentRateLimit  float64
	PaymentRateBurst  int
	SettlementTimeout time.Duration
	AllowedOrigins    []string
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	cfg := &Config{
		DBSource:     dbSource,
		Port:         getenv("SERVER_PORT", "8080"),
		Env:          getenv("ENVIRONMENT", "development"),
		MachineID:    getenv("MACHINE_ID", "default"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:   getenv("KAFKA_TOPIC", "vending-orders"),
	}

	var err error
	if cfg.SessionLeaseTTL, err = durationEnv("SESSION_LEASE_TTL", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.SettlementTimeout, err = durationEnv("SETTLEMENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PaymentRateLimit, err = floatEnv("PAYMENT_RATE_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.PaymentRateBurst, err = intEnv("PAYMENT_RATE_BURST", 40); err != nil {
		return nil, err
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	return cfg, nil
}

// Development reports whether the service runs with development defaults.
func (c *Config) Development() bool {
	return c.Env == "development"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, v)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

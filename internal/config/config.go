package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	// LoanPeriodDays is how long a checkout runs before it is overdue.
	LoanPeriodDays int

	// UseMockDB runs against the in-memory store instead of PostgreSQL.
	UseMockDB bool

	// OTLPEndpoint enables trace export when set (host:port).
	OTLPEndpoint string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		LoanPeriodDays: 30,
		UseMockDB:      os.Getenv("USE_MOCK_DB") == "true",
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if !cfg.UseMockDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when USE_MOCK_DB is not set")
	}

	if raw := os.Getenv("LOAN_PERIOD_DAYS"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid LOAN_PERIOD_DAYS: %s", raw)
		}
		cfg.LoanPeriodDays = days
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

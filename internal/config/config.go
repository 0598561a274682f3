// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Classifier
	ModelPath      string  // Path to the model artifact JSON (optional, built-in demo model if not set)
	FraudThreshold float64 // Probability above which a transaction is flagged

	// Batch processing
	BatchWorkers int // Worker pool size for batch decisions

	// Security
	RateLimitRPS int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional, tracing disabled if not set)
}

const (
	DefaultPort         = "8080"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultThreshold    = 0.5
	DefaultBatchWorkers = 8
	DefaultRateLimit    = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:    os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		ModelPath:      os.Getenv("MODEL_PATH"),   // Optional, demo model if not set
		FraudThreshold: getEnvFloat("FRAUD_THRESHOLD", DefaultThreshold),
		BatchWorkers:   int(getEnvInt64("BATCH_WORKERS", DefaultBatchWorkers)),
		RateLimitRPS:   int(getEnvInt64("RATE_LIMIT_RPS", DefaultRateLimit)),
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.FraudThreshold <= 0 || c.FraudThreshold >= 1 {
		return fmt.Errorf("FRAUD_THRESHOLD must be in (0, 1), got %v", c.FraudThreshold)
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", c.BatchWorkers)
	}
	if c.RateLimitRPS < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS must be at least 1, got %d", c.RateLimitRPS)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

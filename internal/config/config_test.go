package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "PORT", "")
	setEnv(t, "FRAUD_THRESHOLD", "")
	setEnv(t, "BATCH_WORKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultThreshold, cfg.FraudThreshold)
	assert.Equal(t, DefaultBatchWorkers, cfg.BatchWorkers)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPS)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "FRAUD_THRESHOLD", "0.7")
	setEnv(t, "BATCH_WORKERS", "16")
	setEnv(t, "MODEL_PATH", "/opt/models/fraud.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 0.7, cfg.FraudThreshold)
	assert.Equal(t, 16, cfg.BatchWorkers)
	assert.Equal(t, "/opt/models/fraud.json", cfg.ModelPath)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "valid config",
			config:  Config{FraudThreshold: 0.5, BatchWorkers: 8, RateLimitRPS: 100},
			wantErr: "",
		},
		{
			name:    "threshold too low",
			config:  Config{FraudThreshold: 0, BatchWorkers: 8, RateLimitRPS: 100},
			wantErr: "FRAUD_THRESHOLD",
		},
		{
			name:    "threshold too high",
			config:  Config{FraudThreshold: 1.0, BatchWorkers: 8, RateLimitRPS: 100},
			wantErr: "FRAUD_THRESHOLD",
		},
		{
			name:    "zero workers",
			config:  Config{FraudThreshold: 0.5, BatchWorkers: 0, RateLimitRPS: 100},
			wantErr: "BATCH_WORKERS",
		},
		{
			name:    "zero rate limit",
			config:  Config{FraudThreshold: 0.5, BatchWorkers: 8, RateLimitRPS: 0},
			wantErr: "RATE_LIMIT_RPS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvFloat(t *testing.T) {
	setEnv(t, "TEST_FLOAT", "0.65")
	setEnv(t, "TEST_BAD_FLOAT", "high")

	assert.Equal(t, 0.65, getEnvFloat("TEST_FLOAT", 0.5))
	assert.Equal(t, 0.5, getEnvFloat("NONEXISTENT_VAR", 0.5))
	assert.Equal(t, 0.5, getEnvFloat("TEST_BAD_FLOAT", 0.5))
}

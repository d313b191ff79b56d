// Package config provides configuration management for the grading-system.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultLeaseDuration is the default edit-lock lease duration.
	DefaultLeaseDuration = 5 * time.Minute

	// DefaultSweepInterval is the default interval between expired-lock
	// sweeps.
	DefaultSweepInterval = time.Minute

	// DefaultAdminMaxPayloadSize is the default max payload size for admin
	// endpoints (100KB).
	DefaultAdminMaxPayloadSize int64 = 100 * 1024
)

// Config holds the application configuration.
type Config struct {
	// Port is the HTTP server port.
	Port string

	// DatabaseURL is the PostgreSQL connection string. Empty selects the
	// in-memory stores (development mode).
	DatabaseURL string

	// RedisAddr is the Redis address. Used when LockBackend is "redis".
	RedisAddr string

	// LockBackend selects the lease store backend: "postgres", "redis", or
	// "memory".
	LockBackend string

	// LeaseDuration is how long an edit lease stays valid without a
	// heartbeat.
	LeaseDuration time.Duration

	// SweepInterval is how often expired lock records are purged.
	SweepInterval time.Duration

	// AdminMaxPayloadSize is the maximum payload size for admin endpoints in
	// bytes.
	AdminMaxPayloadSize int64

	// LogLevel is the zerolog level name.
	LogLevel string

	// LogPretty enables human-readable console output.
	LogPretty bool
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		LockBackend:         getEnvOrDefault("LOCK_BACKEND", "postgres"),
		LeaseDuration:       getEnvDurationOrDefault("LOCK_LEASE_DURATION", DefaultLeaseDuration),
		SweepInterval:       getEnvDurationOrDefault("LOCK_SWEEP_INTERVAL", DefaultSweepInterval),
		AdminMaxPayloadSize: getEnvInt64OrDefault("ADMIN_MAX_PAYLOAD_SIZE", DefaultAdminMaxPayloadSize),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogPretty:           getEnvBoolOrDefault("LOG_PRETTY", false),
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64OrDefault returns the environment variable value as int64 or the default if not set or invalid.
func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable value as a duration or the default if not set or invalid.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable value as bool or the default if not set or invalid.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

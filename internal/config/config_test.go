package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars
	_ = os.Unsetenv("PORT")
	_ = os.Unsetenv("DATABASE_URL")
	_ = os.Unsetenv("REDIS_ADDR")
	_ = os.Unsetenv("LOCK_BACKEND")
	_ = os.Unsetenv("LOCK_LEASE_DURATION")
	_ = os.Unsetenv("LOCK_SWEEP_INTERVAL")
	_ = os.Unsetenv("ADMIN_MAX_PAYLOAD_SIZE")
	_ = os.Unsetenv("LOG_LEVEL")
	_ = os.Unsetenv("LOG_PRETTY")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port '8080', got '%s'", cfg.Port)
	}

	if cfg.LockBackend != "postgres" {
		t.Errorf("expected default lock backend 'postgres', got '%s'", cfg.LockBackend)
	}

	if cfg.LeaseDuration != DefaultLeaseDuration {
		t.Errorf("expected default lease duration %v, got %v", DefaultLeaseDuration, cfg.LeaseDuration)
	}

	if cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("expected default sweep interval %v, got %v", DefaultSweepInterval, cfg.SweepInterval)
	}

	if cfg.AdminMaxPayloadSize != DefaultAdminMaxPayloadSize {
		t.Errorf("expected default admin payload size %d, got %d", DefaultAdminMaxPayloadSize, cfg.AdminMaxPayloadSize)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("expected pretty logging to default off")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/grading")
	t.Setenv("REDIS_ADDR", "redis-host:6380")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("LOCK_LEASE_DURATION", "2m")
	t.Setenv("LOCK_SWEEP_INTERVAL", "30s")
	t.Setenv("ADMIN_MAX_PAYLOAD_SIZE", "204800") // 200KB
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port '9090', got '%s'", cfg.Port)
	}

	if cfg.DatabaseURL != "postgres://localhost:5432/grading" {
		t.Errorf("unexpected database URL '%s'", cfg.DatabaseURL)
	}

	if cfg.RedisAddr != "redis-host:6380" {
		t.Errorf("unexpected redis addr '%s'", cfg.RedisAddr)
	}

	if cfg.LockBackend != "redis" {
		t.Errorf("expected lock backend 'redis', got '%s'", cfg.LockBackend)
	}

	if cfg.LeaseDuration != 2*time.Minute {
		t.Errorf("expected lease duration 2m, got %v", cfg.LeaseDuration)
	}

	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected sweep interval 30s, got %v", cfg.SweepInterval)
	}

	if cfg.AdminMaxPayloadSize != 204800 {
		t.Errorf("expected admin payload size 204800, got %d", cfg.AdminMaxPayloadSize)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.LogLevel)
	}

	if !cfg.LogPretty {
		t.Error("expected pretty logging on")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("LOCK_LEASE_DURATION", "not-a-duration")
	t.Setenv("LOCK_SWEEP_INTERVAL", "-10s")
	t.Setenv("ADMIN_MAX_PAYLOAD_SIZE", "not-a-number")
	t.Setenv("LOG_PRETTY", "not-a-bool")

	cfg := Load()

	if cfg.LeaseDuration != DefaultLeaseDuration {
		t.Errorf("expected fallback to default lease duration, got %v", cfg.LeaseDuration)
	}

	if cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("expected fallback to default sweep interval, got %v", cfg.SweepInterval)
	}

	if cfg.AdminMaxPayloadSize != DefaultAdminMaxPayloadSize {
		t.Errorf("expected fallback to default admin payload size, got %d", cfg.AdminMaxPayloadSize)
	}

	if cfg.LogPretty {
		t.Error("expected fallback to default pretty logging")
	}
}

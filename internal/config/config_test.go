package config

import (
	"os"
	"testing"
	"time"

	"github.com/fgrust/zero-liquid/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might affect defaults
	for _, key := range []string{"DATABASE_URL", "HTTP_PORT", "IDENTITY_URL", "IDENTITY_RETRY_MAX", "CLOSE_CREDIT_POLICY", "SWEEP_WORKER_INTERVAL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.IdentityRetryMax != 5 {
		t.Errorf("IdentityRetryMax = %d, want 5", cfg.IdentityRetryMax)
	}
	if cfg.IdentityRetryBaseDelay != 2*time.Second {
		t.Errorf("IdentityRetryBaseDelay = %v, want 2s", cfg.IdentityRetryBaseDelay)
	}
	if cfg.CloseCreditPolicy != domain.CreditCloser {
		t.Errorf("CloseCreditPolicy = %q, want closer", cfg.CloseCreditPolicy)
	}
	if cfg.SweepWorkerInterval != 10*time.Minute {
		t.Errorf("SweepWorkerInterval = %v, want 10m", cfg.SweepWorkerInterval)
	}
	if cfg.ReportWorkerInterval != 24*time.Hour {
		t.Errorf("ReportWorkerInterval = %v, want 24h", cfg.ReportWorkerInterval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/testdb")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("IDENTITY_URL", "https://identity.example.com")
	t.Setenv("IDENTITY_RETRY_MAX", "10")
	t.Setenv("IDENTITY_RETRY_BASE_DELAY", "5s")
	t.Setenv("CLOSE_CREDIT_POLICY", "seller")
	t.Setenv("SWEEPER_ADDRESS", "JANITOR")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://localhost/testdb" {
		t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if cfg.IdentityURL != "https://identity.example.com" {
		t.Errorf("IdentityURL = %q, want override", cfg.IdentityURL)
	}
	if cfg.IdentityRetryMax != 10 {
		t.Errorf("IdentityRetryMax = %d, want 10", cfg.IdentityRetryMax)
	}
	if cfg.IdentityRetryBaseDelay != 5*time.Second {
		t.Errorf("IdentityRetryBaseDelay = %v, want 5s", cfg.IdentityRetryBaseDelay)
	}
	if cfg.CloseCreditPolicy != domain.CreditSeller {
		t.Errorf("CloseCreditPolicy = %q, want seller", cfg.CloseCreditPolicy)
	}
	if cfg.SweeperAddress != "JANITOR" {
		t.Errorf("SweeperAddress = %q, want JANITOR", cfg.SweeperAddress)
	}
}

func TestLoadInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("IDENTITY_RETRY_MAX", "not-a-number")
	t.Setenv("IDENTITY_RETRY_BASE_DELAY", "invalid-duration")

	cfg := Load()

	if cfg.IdentityRetryMax != 5 {
		t.Errorf("IdentityRetryMax = %d, want default 5 on invalid input", cfg.IdentityRetryMax)
	}
	if cfg.IdentityRetryBaseDelay != 2*time.Second {
		t.Errorf("IdentityRetryBaseDelay = %v, want default 2s on invalid input", cfg.IdentityRetryBaseDelay)
	}
}

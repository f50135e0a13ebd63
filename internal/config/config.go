package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/fgrust/zero-liquid/internal/domain"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL            string
	HTTPPort               string
	AdminAPIKey            string
	IdentityURL            string
	IdentityRetryMax       int
	IdentityRetryBaseDelay time.Duration
	CloseCreditPolicy      domain.CreditPolicy
	SweeperAddress         domain.Address
	SweepWorkerInterval    time.Duration
	ReportWorkerInterval   time.Duration
	ReportDir              string
	SheetsSpreadsheetID    string
	GoogleCredentialsJSON  string
}

// Load reads configuration from environment variables with sensible defaults.
// An empty DATABASE_URL selects the in-memory ledger, meant for development.
func Load() Config {
	return Config{
		DatabaseURL:            envOrDefaultWarn("DATABASE_URL", ""),
		HTTPPort:               envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:            envOrDefault("ADMIN_API_KEY", ""),
		IdentityURL:            envOrDefault("IDENTITY_URL", ""),
		IdentityRetryMax:       envOrDefaultInt("IDENTITY_RETRY_MAX", 5),
		IdentityRetryBaseDelay: envOrDefaultDuration("IDENTITY_RETRY_BASE_DELAY", 2*time.Second),
		CloseCreditPolicy:      domain.CreditPolicy(envOrDefault("CLOSE_CREDIT_POLICY", string(domain.CreditCloser))),
		SweeperAddress:         domain.Address(envOrDefault("SWEEPER_ADDRESS", "SWEEPER")),
		SweepWorkerInterval:    envOrDefaultDuration("SWEEP_WORKER_INTERVAL", 10*time.Minute),
		ReportWorkerInterval:   envOrDefaultDuration("REPORT_WORKER_INTERVAL", 24*time.Hour),
		ReportDir:              envOrDefault("REPORT_DIR", ""),
		SheetsSpreadsheetID:    envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		GoogleCredentialsJSON:  envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

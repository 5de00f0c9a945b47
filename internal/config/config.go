// Package config loads process configuration from the environment, an optional
// .env file and an optional YAML policy file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"docledger/internal/domain/documents"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/registers/loyalty"
)

// Config is the runtime configuration shared by server, worker and CLI.
type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	// DatabaseURL selects the postgres store; empty means the in-memory store.
	DatabaseURL string
	DBMaxConns  int

	// PolicyFile is an optional YAML file with per-type overrides.
	PolicyFile string

	Overpayment ledger.OverpaymentPolicy
	LoyaltyRule string

	OutboxInterval  time.Duration
	OutboxBatchSize int

	ShutdownTimeout time.Duration
}

// Load reads .env (when present) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	overpayment, err := ledger.ParseOverpaymentPolicy(getEnv("OVERPAYMENT_POLICY", ""))
	if err != nil {
		return nil, err
	}

	return &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnv("APP_PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DBMaxConns:      getEnvInt("DB_MAX_CONNS", 10),
		PolicyFile:      getEnv("POLICY_FILE", ""),
		Overpayment:     overpayment,
		LoyaltyRule:     getEnv("LOYALTY_RULE", loyalty.DefaultRule),
		OutboxInterval:  getEnvDuration("OUTBOX_INTERVAL", 5*time.Second),
		OutboxBatchSize: getEnvInt("OUTBOX_BATCH_SIZE", 100),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}, nil
}

// Development reports whether the process runs in development mode.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

// Policies returns the document type policies: built-in defaults with the
// policy file applied on top. Settings in the file win over the environment.
func (c *Config) Policies() (map[documents.Type]documents.TypePolicy, error) {
	policies := documents.DefaultPolicies()
	if c.PolicyFile == "" {
		return policies, nil
	}

	file, err := ReadPolicyFile(c.PolicyFile)
	if err != nil {
		return nil, err
	}
	if err := file.Apply(policies); err != nil {
		return nil, fmt.Errorf("policy file %s: %w", c.PolicyFile, err)
	}
	if file.Overpayment != "" {
		if c.Overpayment, err = ledger.ParseOverpaymentPolicy(file.Overpayment); err != nil {
			return nil, fmt.Errorf("policy file %s: %w", c.PolicyFile, err)
		}
	}
	if file.LoyaltyRule != "" {
		c.LoyaltyRule = file.LoyaltyRule
	}
	return policies, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

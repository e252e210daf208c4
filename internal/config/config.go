package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Enables HSTS and the production config warnings.
	Production bool `env:"PRODUCTION" envDefault:"false"`

	// Snapshot backend. Also the seed source for PG_MIGRATE_FROM_FILE.
	StoragePath string `env:"STORAGE_PATH" envDefault:"accounts-state.json"`

	// Empty selects the snapshot backend.
	DatabaseURL       string `env:"DATABASE_URL"`
	PGRequired        bool   `env:"PG_REQUIRED" envDefault:"false"`
	PGMigrateFromFile bool   `env:"PG_MIGRATE_FROM_FILE" envDefault:"false"`
	PGAllowOverwrite  bool   `env:"PG_ALLOW_OVERWRITE" envDefault:"false"`

	RedisURL              string `env:"REDIS_URL"`
	ClaimRateLimitPerMin  int    `env:"CLAIM_RATE_LIMIT_PER_MIN" envDefault:"0"`
	StaleSweepIntervalSec int    `env:"STALE_SWEEP_INTERVAL_SECONDS" envDefault:"0"`

	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	VerifyDBPath   string `env:"VERIFY_DB_PATH" envDefault:"verify.db"`
	MaxImportBytes int64  `env:"MAX_IMPORT_BYTES" envDefault:"8388608"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) UsePostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// StaleSweepInterval is zero when the sweep job is disabled.
func (c *Config) StaleSweepInterval() time.Duration {
	return time.Duration(c.StaleSweepIntervalSec) * time.Second
}

func (c *Config) Validate() error {
	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run ./cmd/hash-password <password>)")
		}
	}

	if c.ClaimRateLimitPerMin < 0 {
		return fmt.Errorf("CLAIM_RATE_LIMIT_PER_MIN must not be negative")
	}
	if c.StaleSweepIntervalSec < 0 {
		return fmt.Errorf("STALE_SWEEP_INTERVAL_SECONDS must not be negative")
	}
	if c.MaxImportBytes <= 0 {
		return fmt.Errorf("MAX_IMPORT_BYTES must be positive")
	}
	if c.PGMigrateFromFile && !c.UsePostgres() {
		log.Warn().Msg("PG_MIGRATE_FROM_FILE is set without DATABASE_URL: ignored")
	}

	if c.Production {
		if c.AdminPasswordHash == "" {
			log.Warn().Msg("ADMIN_PASSWORD_HASH is empty in production: admin endpoints are unprotected")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

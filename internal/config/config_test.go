package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("StaleSweepInterval converts seconds to duration", func(t *testing.T) {
		cfg := &Config{StaleSweepIntervalSec: 300}
		assert.Equal(t, 5*time.Minute, cfg.StaleSweepInterval())
	})

	t.Run("UsePostgres follows DATABASE_URL", func(t *testing.T) {
		assert.False(t, (&Config{}).UsePostgres())
		assert.False(t, (&Config{DatabaseURL: "  "}).UsePostgres())
		assert.True(t, (&Config{DatabaseURL: "postgres://localhost/gem"}).UsePostgres())
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads config with defaults", func(t *testing.T) {
		for _, k := range []string{"PORT", "LOG_LEVEL", "STORAGE_PATH", "DATABASE_URL", "PG_REQUIRED",
			"PG_ALLOW_OVERWRITE", "REDIS_URL", "CLAIM_RATE_LIMIT_PER_MIN", "STALE_SWEEP_INTERVAL_SECONDS",
			"VERIFY_DB_PATH", "MAX_IMPORT_BYTES", "PRODUCTION"} {
			t.Setenv(k, "")
		}

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.False(t, cfg.Production)
		assert.Equal(t, "accounts-state.json", cfg.StoragePath)
		assert.Empty(t, cfg.DatabaseURL)
		assert.False(t, cfg.PGRequired)
		assert.False(t, cfg.PGAllowOverwrite)
		assert.Zero(t, cfg.ClaimRateLimitPerMin)
		assert.Zero(t, cfg.StaleSweepInterval())
		assert.Equal(t, "verify.db", cfg.VerifyDBPath)
		assert.Equal(t, int64(8<<20), cfg.MaxImportBytes)
	})

	t.Run("loads custom values", func(t *testing.T) {
		t.Setenv("PORT", "3000")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("DATABASE_URL", "postgres://localhost/gem")
		t.Setenv("PG_REQUIRED", "true")
		t.Setenv("PG_ALLOW_OVERWRITE", "true")
		t.Setenv("CLAIM_RATE_LIMIT_PER_MIN", "120")
		t.Setenv("PRODUCTION", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.True(t, cfg.UsePostgres())
		assert.True(t, cfg.PGRequired)
		assert.True(t, cfg.PGAllowOverwrite)
		assert.Equal(t, 120, cfg.ClaimRateLimitPerMin)
		assert.True(t, cfg.Production)
	})

	t.Run("fails on malformed number", func(t *testing.T) {
		t.Setenv("PORT", "eighty")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{MaxImportBytes: 1024}
	}

	t.Run("accepts defaults", func(t *testing.T) {
		assert.NoError(t, valid().Validate())

		cfg := valid()
		cfg.Production = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects non-bcrypt admin hash", func(t *testing.T) {
		cfg := valid()
		cfg.AdminPasswordHash = "hunter2"
		assert.Error(t, cfg.Validate())

		cfg.AdminPasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects negative intervals", func(t *testing.T) {
		cfg := valid()
		cfg.StaleSweepIntervalSec = -1
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.ClaimRateLimitPerMin = -5
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects zero import limit", func(t *testing.T) {
		cfg := valid()
		cfg.MaxImportBytes = 0
		assert.Error(t, cfg.Validate())
	})
}

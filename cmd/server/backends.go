package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/config"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/database"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage/postgres"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage/snapshot"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/verification"
)

// backends holds the account store and verification journal chosen at
// startup. db is nil on the snapshot backend.
type backends struct {
	accounts storage.Store
	journal  verification.Store
	db       *database.DB
}

func (b *backends) Close() {
	if err := b.journal.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close verification journal")
	}
	if err := b.accounts.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close account store")
	}
}

// openBackends prefers postgres when DATABASE_URL is set. Unless
// PG_REQUIRED is on, a failed postgres start falls back to the snapshot
// file.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if cfg.UsePostgres() {
		b, err := openPostgres(ctx, cfg)
		if err == nil {
			return b, nil
		}
		if cfg.PGRequired {
			return nil, err
		}
		log.Warn().Err(err).Msg("postgres unavailable, falling back to snapshot store")
	}
	return openSnapshot(ctx, cfg)
}

func openPostgres(ctx context.Context, cfg *config.Config) (*backends, error) {
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.Options{
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("database connected")

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	accounts := postgres.New(db)
	if cfg.PGMigrateFromFile {
		if err := seedFromSnapshot(ctx, cfg.StoragePath, accounts); err != nil {
			log.Warn().Err(err).Str("path", cfg.StoragePath).Msg("failed to seed postgres from snapshot")
		}
	}

	return &backends{
		accounts: accounts,
		journal:  verification.NewPostgres(db),
		db:       db,
	}, nil
}

func seedFromSnapshot(ctx context.Context, path string, dst storage.Store) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("no snapshot file to seed from")
		return nil
	}

	src, err := snapshot.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = storage.Seed(ctx, src, dst)
	return err
}

func openSnapshot(ctx context.Context, cfg *config.Config) (*backends, error) {
	accounts, err := snapshot.Open(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	journal, err := verification.OpenSQLite(ctx, cfg.VerifyDBPath)
	if err != nil {
		accounts.Close()
		return nil, fmt.Errorf("open verification journal: %w", err)
	}

	return &backends{accounts: accounts, journal: journal}, nil
}

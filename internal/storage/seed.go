package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Seed copies every account of src into dst when dst is empty. It returns
// the number of accounts copied; a non-empty dst is left alone.
func Seed(ctx context.Context, src, dst Store) (int, error) {
	existing, err := dst.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list %s accounts: %w", dst.Backend(), err)
	}
	if len(existing) > 0 {
		log.Info().
			Str("backend", dst.Backend()).
			Int("count", len(existing)).
			Msg("Target store not empty, skipping seed")
		return 0, nil
	}

	accounts, err := src.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list %s accounts: %w", src.Backend(), err)
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	err = dst.WithExclusiveAccess(ctx, func(tx Tx) error {
		for i := range accounts {
			if err := tx.Save(ctx, &accounts[i]); err != nil {
				return fmt.Errorf("save %s: %w", accounts[i].Email, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Side records are written after the core rows are committed.
	for _, a := range accounts {
		if a.SheeridURL == "" {
			continue
		}
		if _, err := dst.SetSheeridURL(ctx, a.Email, a.SheeridURL); err != nil {
			log.Warn().Err(err).Str("email", a.Email).Msg("Failed to seed sheerid link")
		}
	}

	log.Info().
		Str("from", src.Backend()).
		Str("to", dst.Backend()).
		Int("count", len(accounts)).
		Msg("Seeded accounts")
	return len(accounts), nil
}

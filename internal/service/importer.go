package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/audit"
	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/importer"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
)

// ImportService merges parsed batches into the pool.
type ImportService struct {
	store          storage.Store
	allowOverwrite bool
}

// NewImportService builds the merger. With allowOverwrite false an
// OVERWRITE request is carried out as APPEND.
func NewImportService(store storage.Store, allowOverwrite bool) *ImportService {
	return &ImportService{store: store, allowOverwrite: allowOverwrite}
}

// Import runs the whole batch under exclusive access. Existing accounts only
// get the profile columns present on their line; their status, sold and
// finished flags and sheerid link are left as they are.
func (s *ImportService) Import(ctx context.Context, text string, mode model.ImportMode, tmpl importer.Template) (*model.ImportResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.MissingRequired("content")
	}
	if mode == "" {
		mode = model.ImportModeAppend
	}
	if mode == model.ImportModeOverwrite && !s.allowOverwrite {
		log.Warn().Str("backend", s.store.Backend()).Msg("Overwrite import not allowed, appending instead")
		mode = model.ImportModeAppend
	}

	lines := importer.Parse(text, tmpl)
	result := &model.ImportResult{Mode: mode}

	err := s.store.WithExclusiveAccess(ctx, func(tx storage.Tx) error {
		result.Added, result.Updated, result.Skipped = 0, 0, 0

		if mode == model.ImportModeOverwrite {
			if err := tx.Clear(ctx); err != nil {
				return err
			}
		}

		for _, line := range lines {
			if line.Record == nil {
				log.Debug().Int("line", line.Number).Str("reason", line.Reason).Msg("Skipping import line")
				result.Skipped++
				continue
			}

			account, err := tx.Get(ctx, line.Record.Email)
			if err != nil {
				return err
			}
			if account == nil {
				account = model.NewAccount(line.Record.Email)
				result.Added++
			} else {
				result.Updated++
			}

			line.Record.Patch.Apply(account)
			if err := tx.Save(ctx, account); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("mode", string(mode)).
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("Import finished")
	audit.Log(ctx, audit.Event{
		Type: audit.EventImport,
		Details: map[string]interface{}{
			"mode":     string(mode),
			"template": string(tmpl),
			"added":    result.Added,
			"updated":  result.Updated,
			"skipped":  result.Skipped,
		},
	})
	return result, nil
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/config"
	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/verification"
)

const journalBackend = "verification"

// VerificationService records what workers report about their verification
// runs. Writes are only accepted for accounts that exist in the pool.
type VerificationService struct {
	journal verification.Store
	pool    storage.Store
}

func NewVerificationService(journal verification.Store, pool storage.Store) *VerificationService {
	return &VerificationService{journal: journal, pool: pool}
}

func (s *VerificationService) AddHistory(ctx context.Context, email string) (*model.VerifyHistory, error) {
	email, err := s.requireAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	h, err := s.journal.AddHistory(ctx, email, time.Now())
	if err != nil {
		return nil, journalError(err)
	}
	return h, nil
}

// RecentHistory returns the newest entries. limit falls back to the
// default when not positive and is capped at MaxHistoryLimit.
func (s *VerificationService) RecentHistory(ctx context.Context, limit int) ([]model.VerifyHistory, error) {
	if limit <= 0 {
		limit = config.DefaultHistoryLimit
	}
	limit = min(limit, config.MaxHistoryLimit)

	history, err := s.journal.RecentHistory(ctx, limit)
	if err != nil {
		return nil, journalError(err)
	}
	return history, nil
}

func (s *VerificationService) UpsertStatus(ctx context.Context, email, status, message string) (*model.VerifyStatus, error) {
	email, err := s.requireAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	st := model.VerifyStatus{
		Email:     email,
		Status:    strings.TrimSpace(status),
		Message:   strings.TrimSpace(message),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.journal.UpsertStatus(ctx, st); err != nil {
		return nil, journalError(err)
	}
	return &st, nil
}

// Statuses looks up the latest status for each email. Blank entries are
// ignored and unknown emails are simply absent from the result.
func (s *VerificationService) Statuses(ctx context.Context, emails []string) ([]model.VerifyStatus, error) {
	cleaned := cleanEmails(emails)
	if len(cleaned) == 0 {
		return []model.VerifyStatus{}, nil
	}
	statuses, err := s.journal.Statuses(ctx, cleaned)
	if err != nil {
		return nil, journalError(err)
	}
	return statuses, nil
}

func (s *VerificationService) requireAccount(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperrors.MissingRequired("email")
	}
	exists, err := s.pool.Exists(ctx, email)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", apperrors.NotFound("Account")
	}
	return email, nil
}

func journalError(err error) error {
	log.Error().Err(err).Str("backend", journalBackend).Msg("Verification journal operation failed")
	return apperrors.BackendUnavailable(journalBackend, err)
}

package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/audit"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/config"
	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
)

// PoolService hands accounts to workers and applies callback results and
// operator actions. It never looks at which backend it runs on.
type PoolService struct {
	store storage.Store
}

func NewPoolService(store storage.Store) *PoolService {
	return &PoolService{store: store}
}

func (s *PoolService) Backend() string {
	return s.store.Backend()
}

// Claim returns the next claimable account, now CHECKING, or nil when the
// pool has nothing to hand out.
func (s *PoolService) Claim(ctx context.Context) (*model.Account, error) {
	account, err := s.store.ClaimIdle(ctx)
	if err != nil {
		return nil, err
	}
	if account == nil {
		log.Debug().Msg("No idle account to claim")
		return nil, nil
	}
	log.Info().Str("email", account.Email).Msg("Account claimed")
	return account, nil
}

// Resolve applies a worker's verdict. A link that exceeds the length
// limit is dropped; the status is applied regardless.
func (s *PoolService) Resolve(ctx context.Context, email, result, sheeridURL string) (*model.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if strings.TrimSpace(result) == "" {
		return nil, apperrors.MissingRequired("result")
	}

	status, ok := model.ParseStatus(result)
	if !ok || !status.IsCallbackResult() {
		return nil, apperrors.ValidationError("result must be QUALIFIED or INVALID")
	}

	account, err := s.store.SetStatus(ctx, email, status)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.NotFound("Account")
	}

	url := strings.TrimSpace(sheeridURL)
	if status == model.StatusQualified && url != "" {
		if len(url) > config.MaxSheeridURLLength {
			log.Warn().Str("email", email).Int("length", len(url)).Msg("Ignoring over-long sheerid link")
		} else {
			if _, err := s.store.SetSheeridURL(ctx, email, url); err != nil {
				return nil, err
			}
			account.SheeridURL = url
		}
	}

	log.Info().Str("email", email).Str("status", string(status)).Msg("Callback applied")
	return account, nil
}

func (s *PoolService) SetStatus(ctx context.Context, email string, status model.AccountStatus) (*model.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}

	account, err := s.store.SetStatus(ctx, email, status)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.NotFound("Account")
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventStatusOverride,
		Email:   email,
		Details: map[string]interface{}{"status": string(status)},
	})
	return account, nil
}

// ResetStaleClaims returns every CHECKING account to IDLE.
func (s *PoolService) ResetStaleClaims(ctx context.Context) (int64, error) {
	n, err := s.store.ResetChecking(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventResetChecking,
			Details: map[string]interface{}{"count": n},
		})
	}
	return n, nil
}

func (s *PoolService) RestoreStatus(ctx context.Context, email string, status model.AccountStatus) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}
	account, err := s.store.SetStatus(ctx, email, status)
	if err != nil {
		return false, err
	}
	return account != nil, nil
}

// RestoreMany applies each item on its own. Items that are blank, carry an
// unknown status or name a missing account are counted as skipped.
func (s *PoolService) RestoreMany(ctx context.Context, items []model.RestoreItem) (*model.RestoreResult, error) {
	result := &model.RestoreResult{}
	for _, item := range items {
		status, ok := model.ParseStatus(item.Status)
		if !ok || strings.TrimSpace(item.Email) == "" {
			result.Skipped++
			continue
		}
		restored, err := s.RestoreStatus(ctx, item.Email, status)
		if err != nil {
			return nil, err
		}
		if restored {
			result.Updated++
		} else {
			result.Skipped++
		}
	}

	audit.Log(ctx, audit.Event{
		Type: audit.EventStatusRestore,
		Details: map[string]interface{}{
			"updated": result.Updated,
			"skipped": result.Skipped,
		},
	})
	return result, nil
}

func (s *PoolService) SetSold(ctx context.Context, email string, sold bool) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}
	ok, err := s.store.SetSold(ctx, email, sold)
	if err != nil || !ok {
		return false, err
	}
	audit.Log(ctx, audit.Event{
		Type:    audit.EventSoldChange,
		Email:   email,
		Details: map[string]interface{}{"sold": sold},
	})
	return true, nil
}

// SetFinished sets the flag and moves QUALIFIED/PRODUCT along with it.
func (s *PoolService) SetFinished(ctx context.Context, email string, finished bool) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}

	var found bool
	err := s.store.WithExclusiveAccess(ctx, func(tx storage.Tx) error {
		account, err := tx.Get(ctx, email)
		if err != nil || account == nil {
			return err
		}
		found = true
		account.Finished = finished
		account.Status = account.Status.WithFinished(finished)
		return tx.Save(ctx, account)
	})
	if err != nil || !found {
		return false, err
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventFinishedChange,
		Email:   email,
		Details: map[string]interface{}{"finished": finished},
	})
	return true, nil
}

// SetAuxiliaryLink stores the sheerid link. An empty url removes it.
func (s *PoolService) SetAuxiliaryLink(ctx context.Context, email, url string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, apperrors.MissingRequired("email")
	}
	url = strings.TrimSpace(url)
	if len(url) > config.MaxSheeridURLLength {
		return false, apperrors.InvalidInput("sheeridUrl", "too long")
	}
	return s.store.SetSheeridURL(ctx, email, url)
}

func (s *PoolService) Delete(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}
	ok, err := s.store.Delete(ctx, email)
	if err != nil || !ok {
		return false, err
	}
	audit.Log(ctx, audit.Event{Type: audit.EventAccountDelete, Email: email})
	return true, nil
}

func (s *PoolService) DeleteMany(ctx context.Context, emails []string) (int64, error) {
	cleaned := cleanEmails(emails)
	n, err := s.store.DeleteMany(ctx, cleaned)
	if err != nil {
		return 0, err
	}
	audit.Log(ctx, audit.Event{
		Type: audit.EventAccountDelete,
		Details: map[string]interface{}{
			"requested": len(cleaned),
			"deleted":   n,
		},
	})
	return n, nil
}

func (s *PoolService) DeleteAllSold(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteSold(ctx)
	if err != nil {
		return 0, err
	}
	audit.Log(ctx, audit.Event{
		Type:    audit.EventSoldSweep,
		Details: map[string]interface{}{"deleted": n},
	})
	return n, nil
}

func (s *PoolService) Exists(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}
	return s.store.Exists(ctx, email)
}

func (s *PoolService) List(ctx context.Context) (*model.StatusView, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return model.NewStatusView(accounts), nil
}

func (s *PoolService) FindByStatus(ctx context.Context, status model.AccountStatus) (*model.Account, error) {
	return s.store.FindFirstByStatus(ctx, status)
}

// UpdateAccount edits an account in place and optionally renames it. When
// Finished is given without Status, the status follows the flag.
func (s *PoolService) UpdateAccount(ctx context.Context, params model.UpdateAccountParams) error {
	original := strings.TrimSpace(params.OriginalEmail)
	target := strings.TrimSpace(params.Email)
	if original == "" {
		return apperrors.MissingRequired("originalEmail")
	}
	if target == "" {
		return apperrors.MissingRequired("email")
	}

	err := s.store.WithExclusiveAccess(ctx, func(tx storage.Tx) error {
		account, err := tx.Get(ctx, original)
		if err != nil {
			return err
		}
		if account == nil {
			return apperrors.NotFound("Account")
		}

		if target != original {
			taken, err := tx.Get(ctx, target)
			if err != nil {
				return err
			}
			if taken != nil {
				return apperrors.Conflict("Account").WithDetails(map[string]string{"email": target})
			}
			if err := tx.Rename(ctx, original, target); err != nil {
				return err
			}
			account.Email = target
		}

		applyUpdate(account, params)
		return tx.Save(ctx, account)
	})
	if err != nil {
		return err
	}

	details := map[string]interface{}{}
	if target != original {
		details["renamed_from"] = original
	}
	audit.Log(ctx, audit.Event{Type: audit.EventAccountUpdate, Email: target, Details: details})
	return nil
}

func applyUpdate(a *model.Account, p model.UpdateAccountParams) {
	if p.Password != nil {
		a.Password = strings.TrimSpace(*p.Password)
	}
	if p.RecoveryEmail != nil {
		a.RecoveryEmail = strings.TrimSpace(*p.RecoveryEmail)
	}
	if p.AuthenticatorToken != nil {
		a.AuthenticatorToken = strings.TrimSpace(*p.AuthenticatorToken)
	}
	if p.Sold != nil {
		a.Sold = *p.Sold
	}
	if p.Finished != nil {
		a.Finished = *p.Finished
		if p.Status == nil {
			a.Status = a.Status.WithFinished(*p.Finished)
		}
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
}

func cleanEmails(emails []string) []string {
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return cleaned
}

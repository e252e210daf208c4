// Package postgres is the multi-process account store backed by the
// gem_accounts and gem_sheerid_links tables.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/database"
	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
)

const accountColumns = `email, password, recovery_email, authenticator_token, app_password,
	authenticator_url, messages_url, sold, finished, status`

const joinedColumns = `a.email, a.password, a.recovery_email, a.authenticator_token, a.app_password,
	a.authenticator_url, a.messages_url, a.sold, a.finished, a.status,
	COALESCE(l.sheerid_url, '') AS sheerid_url`

const joinedFrom = `FROM gem_accounts a LEFT JOIN gem_sheerid_links l ON l.email = a.email`

// accountRow is an account read together with its side record.
type accountRow struct {
	model.Account
	Link string `db:"sheerid_url"`
}

func (r *accountRow) toModel() *model.Account {
	a := r.Account
	a.SheeridURL = r.Link
	return &a
}

type Store struct {
	db *database.DB
}

var _ storage.Store = (*Store)(nil)

func New(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Backend() string {
	return storage.BackendPostgres
}

func (s *Store) Close() error {
	return s.db.Close()
}

// wrap turns driver failures into BackendUnavailable. Application errors
// raised inside a transaction pass through untouched.
func wrap(err error) error {
	if err == nil || apperrors.IsAppError(err) {
		return err
	}
	log.Error().Err(err).Str("backend", storage.BackendPostgres).Msg("Storage operation failed")
	return apperrors.BackendUnavailable(storage.BackendPostgres, err)
}

func (s *Store) ClaimIdle(ctx context.Context) (*model.Account, error) {
	var claimed *model.Account
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var email string
		err := tx.GetContext(ctx, &email, `
			SELECT email FROM gem_accounts
			WHERE sold = FALSE AND status = 'IDLE'
			ORDER BY email COLLATE "C"
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		var account model.Account
		err = tx.GetContext(ctx, &account, `
			UPDATE gem_accounts SET status = 'CHECKING', updated_at = NOW()
			WHERE email = $1
			RETURNING `+accountColumns, email)
		if err != nil {
			return err
		}

		link, err := findLink(ctx, tx, email)
		if err != nil {
			return err
		}
		account.SheeridURL = link
		claimed = &account
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	return claimed, nil
}

func (s *Store) Get(ctx context.Context, email string) (*model.Account, error) {
	a, err := getAccount(ctx, s.db, email, false)
	return a, wrap(err)
}

func (s *Store) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM gem_accounts WHERE email = $1)
	`, email)
	return exists, wrap(err)
}

func (s *Store) List(ctx context.Context) ([]model.Account, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+joinedColumns+` `+joinedFrom+` ORDER BY a.email COLLATE "C"`)
	if err != nil {
		return nil, wrap(err)
	}
	accounts := make([]model.Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *rows[i].toModel())
	}
	return accounts, nil
}

func (s *Store) FindFirstByStatus(ctx context.Context, status model.AccountStatus) (*model.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `SELECT `+joinedColumns+` `+joinedFrom+`
		WHERE a.status = $1
		ORDER BY a.email COLLATE "C"
		LIMIT 1`, status)
	found, err := database.HandleNotFound(&row, err)
	if err != nil || found == nil {
		return nil, wrap(err)
	}
	return found.toModel(), nil
}

func (s *Store) SetStatus(ctx context.Context, email string, status model.AccountStatus) (*model.Account, error) {
	var account model.Account
	err := s.db.GetContext(ctx, &account, `
		UPDATE gem_accounts SET status = $2, updated_at = NOW()
		WHERE email = $1
		RETURNING `+accountColumns, email, status)
	updated, err := database.HandleNotFound(&account, err)
	if err != nil || updated == nil {
		return nil, wrap(err)
	}

	link, err := findLink(ctx, s.db, email)
	if err != nil {
		return nil, wrap(err)
	}
	updated.SheeridURL = link
	return updated, nil
}

func (s *Store) ResetChecking(ctx context.Context) (int64, error) {
	return s.execCount(ctx, `
		UPDATE gem_accounts SET status = 'IDLE', updated_at = NOW()
		WHERE status = 'CHECKING'
	`)
}

func (s *Store) SetSold(ctx context.Context, email string, sold bool) (bool, error) {
	n, err := s.execCount(ctx, `
		UPDATE gem_accounts SET sold = $2, updated_at = NOW()
		WHERE email = $1
	`, email, sold)
	return n > 0, err
}

// SetSheeridURL writes the side table on its own, outside any core-row
// transaction.
func (s *Store) SetSheeridURL(ctx context.Context, email, url string) (bool, error) {
	if url == "" {
		exists, err := s.Exists(ctx, email)
		if err != nil || !exists {
			return false, err
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM gem_sheerid_links WHERE email = $1`, email); err != nil {
			return false, wrap(err)
		}
		return true, nil
	}

	n, err := s.execCount(ctx, `
		INSERT INTO gem_sheerid_links (email, sheerid_url, updated_at)
		SELECT email, $2, NOW() FROM gem_accounts WHERE email = $1
		ON CONFLICT (email) DO UPDATE SET sheerid_url = EXCLUDED.sheerid_url, updated_at = NOW()
	`, email, url)
	return n > 0, err
}

func (s *Store) Delete(ctx context.Context, email string) (bool, error) {
	n, err := s.execCount(ctx, `DELETE FROM gem_accounts WHERE email = $1`, email)
	return n > 0, err
}

func (s *Store) DeleteMany(ctx context.Context, emails []string) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	return s.execCount(ctx, `DELETE FROM gem_accounts WHERE email = ANY($1)`, pq.Array(emails))
}

func (s *Store) DeleteSold(ctx context.Context) (int64, error) {
	return s.execCount(ctx, `DELETE FROM gem_accounts WHERE sold = TRUE`)
}

// WithExclusiveAccess runs fn in one transaction holding a table lock that
// blocks every other writer and row locker, claims included, until commit.
// Plain reads still proceed.
func (s *Store) WithExclusiveAccess(ctx context.Context, fn func(tx storage.Tx) error) error {
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE gem_accounts IN EXCLUSIVE MODE`); err != nil {
			return err
		}
		return fn(&pgTx{tx: tx})
	})
	return wrap(err)
}

func (s *Store) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func getAccount(ctx context.Context, db database.DBTX, email string, forUpdate bool) (*model.Account, error) {
	query := `SELECT ` + joinedColumns + ` ` + joinedFrom + ` WHERE a.email = $1`
	if forUpdate {
		query += ` FOR UPDATE OF a`
	}
	var row accountRow
	found, err := database.HandleNotFound(&row, db.GetContext(ctx, &row, query, email))
	if err != nil || found == nil {
		return nil, err
	}
	return found.toModel(), nil
}

func findLink(ctx context.Context, db database.DBTX, email string) (string, error) {
	var link string
	err := db.GetContext(ctx, &link, `SELECT sheerid_url FROM gem_sheerid_links WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return link, err
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) Get(ctx context.Context, email string) (*model.Account, error) {
	return getAccount(ctx, t.tx, email, true)
}

func (t *pgTx) Save(ctx context.Context, a *model.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO gem_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (email) DO UPDATE SET
			password = EXCLUDED.password,
			recovery_email = EXCLUDED.recovery_email,
			authenticator_token = EXCLUDED.authenticator_token,
			app_password = EXCLUDED.app_password,
			authenticator_url = EXCLUDED.authenticator_url,
			messages_url = EXCLUDED.messages_url,
			sold = EXCLUDED.sold,
			finished = EXCLUDED.finished,
			status = EXCLUDED.status,
			updated_at = NOW()
	`, a.Email, a.Password, a.RecoveryEmail, a.AuthenticatorToken, a.AppPassword,
		a.AuthenticatorURL, a.MessagesURL, a.Sold, a.Finished, a.Status)
	return err
}

// Rename relies on ON UPDATE CASCADE to carry the side record along.
func (t *pgTx) Rename(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE gem_accounts SET email = $2, updated_at = NOW()
		WHERE email = $1
	`, from, to)
	return err
}

func (t *pgTx) Clear(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM gem_accounts`)
	return err
}

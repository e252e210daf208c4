// Package verification keeps the journal of verification outcomes reported
// by workers: a history of successful verifications and the latest status
// per account. It lives next to the account table on postgres and in a
// local SQLite file otherwise.
package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"
	_ "modernc.org/sqlite"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/database"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
)

type Store interface {
	AddHistory(ctx context.Context, email string, at time.Time) (*model.VerifyHistory, error)
	// RecentHistory returns up to limit entries, newest first.
	RecentHistory(ctx context.Context, limit int) ([]model.VerifyHistory, error)
	UpsertStatus(ctx context.Context, status model.VerifyStatus) error
	Statuses(ctx context.Context, emails []string) ([]model.VerifyStatus, error)
	Close() error
}

// sqlStore serves both postgres and SQLite. Queries are written with '?'
// and rebound for the driver in use.
type sqlStore struct {
	db     *sqlx.DB
	ownsDB bool
}

// NewPostgres uses the shared postgres handle; its schema comes from the
// goose migrations. Close leaves the handle open for its owner.
func NewPostgres(db *database.DB) Store {
	return &sqlStore{db: db.DB}
}

// OpenSQLite opens (or creates) the journal file at path.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &sqlStore{db: db, ownsDB: true}
	if err := s.migrateSQLite(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

func (s *sqlStore) migrateSQLite(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gem_verify_history (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL,
			success_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_gem_verify_history_success_at ON gem_verify_history (success_at);

		CREATE TABLE IF NOT EXISTS gem_verify_status (
			email      TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			message    TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);
	`)
	return err
}

func (s *sqlStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) AddHistory(ctx context.Context, email string, at time.Time) (*model.VerifyHistory, error) {
	h := &model.VerifyHistory{
		ID:        xid.New().String(),
		Email:     email,
		SuccessAt: at.UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO gem_verify_history (id, email, success_at) VALUES (?, ?, ?)
	`), h.ID, h.Email, h.SuccessAt)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *sqlStore) RecentHistory(ctx context.Context, limit int) ([]model.VerifyHistory, error) {
	history := []model.VerifyHistory{}
	err := s.db.SelectContext(ctx, &history, s.db.Rebind(`
		SELECT id, email, success_at FROM gem_verify_history
		ORDER BY success_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (s *sqlStore) UpsertStatus(ctx context.Context, st model.VerifyStatus) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO gem_verify_status (email, status, message, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			updated_at = excluded.updated_at
	`), st.Email, st.Status, st.Message, st.UpdatedAt.UTC())
	return err
}

func (s *sqlStore) Statuses(ctx context.Context, emails []string) ([]model.VerifyStatus, error) {
	statuses := []model.VerifyStatus{}
	if len(emails) == 0 {
		return statuses, nil
	}
	query, args, err := sqlx.In(`
		SELECT email, status, message, updated_at FROM gem_verify_status
		WHERE email IN (?)
		ORDER BY email
	`, emails)
	if err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &statuses, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return statuses, nil
}

// Package storage defines the account table contract shared by the
// snapshot and postgres backends.
package storage

import (
	"context"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
)

const (
	BackendSnapshot = "snapshot"
	BackendPostgres = "postgres"
)

// Store owns the account table. Absence is reported as nil, false or 0,
// never as an error. Errors mean the backend itself failed.
type Store interface {
	Backend() string

	// ClaimIdle moves the first unsold IDLE account (ascending email) to
	// CHECKING and returns it, or nil when none is eligible. No two calls
	// ever return the same account.
	ClaimIdle(ctx context.Context) (*model.Account, error)

	Get(ctx context.Context, email string) (*model.Account, error)
	Exists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]model.Account, error)
	FindFirstByStatus(ctx context.Context, status model.AccountStatus) (*model.Account, error)

	SetStatus(ctx context.Context, email string, status model.AccountStatus) (*model.Account, error)
	ResetChecking(ctx context.Context) (int64, error)
	SetSold(ctx context.Context, email string, sold bool) (bool, error)
	// SetSheeridURL upserts the side record; an empty url removes it.
	SetSheeridURL(ctx context.Context, email, url string) (bool, error)

	Delete(ctx context.Context, email string) (bool, error)
	DeleteMany(ctx context.Context, emails []string) (int64, error)
	DeleteSold(ctx context.Context) (int64, error)

	// WithExclusiveAccess runs fn with no other writer active. Changes made
	// through tx are kept only when fn returns nil.
	WithExclusiveAccess(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the read-modify-write view handed to WithExclusiveAccess.
type Tx interface {
	Get(ctx context.Context, email string) (*model.Account, error)
	// Save inserts or replaces the core record. The sheerid link is not
	// written.
	Save(ctx context.Context, account *model.Account) error
	// Rename moves an account and its side record to a new key. The caller
	// checks that to is free.
	Rename(ctx context.Context, from, to string) error
	// Clear removes every account and side record.
	Clear(ctx context.Context) error
}

// Package snapshot is the single-process account store: an ordered
// in-memory table behind one mutex, rewritten to a JSON file after every
// change. It must not be shared between processes.
package snapshot

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
)

var errClosed = errors.New("snapshot store closed")

type Store struct {
	path string

	mu     sync.Mutex
	table  *table
	closed bool
}

var _ storage.Store = (*Store)(nil)

// Open loads the snapshot at path, if any, and returns a ready store.
func Open(path string) (*Store, error) {
	t, err := load(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("count", len(t.keys)).Msg("Snapshot store loaded")
	return &Store{path: path, table: t}, nil
}

func (s *Store) Backend() string {
	return storage.BackendSnapshot
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// read runs fn against the current table under the lock.
func (s *Store) read(fn func(t *table)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.BackendUnavailable(storage.BackendSnapshot, errClosed)
	}
	fn(s.table)
	return nil
}

// mutate runs fn against a copy of the table. When fn reports a change the
// copy is persisted and only then becomes the current table, so a failed
// write leaves the pool as it was.
func (s *Store) mutate(fn func(t *table) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.BackendUnavailable(storage.BackendSnapshot, errClosed)
	}

	next := s.table.clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := persist(s.path, next); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to write snapshot")
		return apperrors.BackendUnavailable(storage.BackendSnapshot, err)
	}
	s.table = next
	return nil
}

func (s *Store) ClaimIdle(ctx context.Context) (*model.Account, error) {
	var claimed *model.Account
	err := s.mutate(func(t *table) (bool, error) {
		a, ok := t.first(func(a model.Account) bool { return a.Claimable() })
		if !ok {
			return false, nil
		}
		a.Status = model.StatusChecking
		t.put(a)
		claimed = &a
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) Get(ctx context.Context, email string) (*model.Account, error) {
	var found *model.Account
	err := s.read(func(t *table) {
		if a, ok := t.get(email); ok {
			found = &a
		}
	})
	return found, err
}

func (s *Store) Exists(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := s.read(func(t *table) {
		_, ok = t.get(email)
	})
	return ok, err
}

func (s *Store) List(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	err := s.read(func(t *table) {
		accounts = t.ordered()
	})
	return accounts, err
}

func (s *Store) FindFirstByStatus(ctx context.Context, status model.AccountStatus) (*model.Account, error) {
	var found *model.Account
	err := s.read(func(t *table) {
		if a, ok := t.first(func(a model.Account) bool { return a.Status == status }); ok {
			found = &a
		}
	})
	return found, err
}

func (s *Store) SetStatus(ctx context.Context, email string, status model.AccountStatus) (*model.Account, error) {
	var updated *model.Account
	err := s.mutate(func(t *table) (bool, error) {
		a, ok := t.get(email)
		if !ok {
			return false, nil
		}
		a.Status = status
		t.put(a)
		updated = &a
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) ResetChecking(ctx context.Context) (int64, error) {
	var count int64
	err := s.mutate(func(t *table) (bool, error) {
		for _, k := range t.keys {
			a := t.rows[k]
			if a.Status != model.StatusChecking {
				continue
			}
			a.Status = model.StatusIdle
			t.rows[k] = a
			count++
		}
		return count > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) SetSold(ctx context.Context, email string, sold bool) (bool, error) {
	return s.update(email, func(a *model.Account) {
		a.Sold = sold
	})
}

func (s *Store) SetSheeridURL(ctx context.Context, email, url string) (bool, error) {
	return s.update(email, func(a *model.Account) {
		a.SheeridURL = url
	})
}

// update applies fn to one account. It reports false when the key is
// absent.
func (s *Store) update(email string, fn func(a *model.Account)) (bool, error) {
	var found bool
	err := s.mutate(func(t *table) (bool, error) {
		a, ok := t.get(email)
		if !ok {
			return false, nil
		}
		found = true
		before := a
		fn(&a)
		if a == before {
			return false, nil
		}
		t.put(a)
		return true, nil
	})
	return found, err
}

func (s *Store) Delete(ctx context.Context, email string) (bool, error) {
	var removed bool
	err := s.mutate(func(t *table) (bool, error) {
		removed = t.remove(email)
		return removed, nil
	})
	return removed, err
}

func (s *Store) DeleteMany(ctx context.Context, emails []string) (int64, error) {
	var count int64
	err := s.mutate(func(t *table) (bool, error) {
		for _, email := range emails {
			if t.remove(email) {
				count++
			}
		}
		return count > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) DeleteSold(ctx context.Context) (int64, error) {
	var count int64
	err := s.mutate(func(t *table) (bool, error) {
		for _, a := range t.ordered() {
			if a.Sold && t.remove(a.Email) {
				count++
			}
		}
		return count > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) WithExclusiveAccess(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.mutate(func(t *table) (bool, error) {
		tx := &snapshotTx{table: t}
		if err := fn(tx); err != nil {
			return false, err
		}
		return tx.dirty, nil
	})
}

// snapshotTx edits the working copy held by mutate.
type snapshotTx struct {
	table *table
	dirty bool
}

func (tx *snapshotTx) Get(ctx context.Context, email string) (*model.Account, error) {
	a, ok := tx.table.get(email)
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (tx *snapshotTx) Save(ctx context.Context, account *model.Account) error {
	a := *account
	if prev, ok := tx.table.get(a.Email); ok {
		// Save never writes the side record.
		a.SheeridURL = prev.SheeridURL
	} else {
		a.SheeridURL = ""
	}
	tx.table.put(a)
	tx.dirty = true
	return nil
}

func (tx *snapshotTx) Rename(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	a, ok := tx.table.get(from)
	if !ok {
		return nil
	}
	tx.table.remove(from)
	a.Email = to
	tx.table.put(a)
	tx.dirty = true
	return nil
}

func (tx *snapshotTx) Clear(ctx context.Context) error {
	if len(tx.table.keys) > 0 {
		tx.dirty = true
	}
	*tx.table = *newTable()
	return nil
}

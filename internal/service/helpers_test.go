package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage/snapshot"
)

func openStore(t *testing.T) *snapshot.Store {
	t.Helper()
	s, err := snapshot.Open(filepath.Join(t.TempDir(), "accounts-state.json"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAccounts(t *testing.T, s storage.Store, accounts ...model.Account) {
	t.Helper()
	ctx := context.Background()
	err := s.WithExclusiveAccess(ctx, func(tx storage.Tx) error {
		for i := range accounts {
			if err := tx.Save(ctx, &accounts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func mustGet(t *testing.T, s storage.Store, email string) *model.Account {
	t.Helper()
	a, err := s.Get(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, a, "account %s", email)
	return a
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func statusPtr(s model.AccountStatus) *model.AccountStatus { return &s }

// mockStore fails on demand. Methods that are not overridden panic, so a
// test only touches what it sets up.
type mockStore struct {
	storage.Store
	mock.Mock
}

func (m *mockStore) Backend() string { return storage.BackendPostgres }

func (m *mockStore) ClaimIdle(ctx context.Context) (*model.Account, error) {
	args := m.Called(ctx)
	a, _ := args.Get(0).(*model.Account)
	return a, args.Error(1)
}

func (m *mockStore) SetStatus(ctx context.Context, email string, status model.AccountStatus) (*model.Account, error) {
	args := m.Called(ctx, email, status)
	a, _ := args.Get(0).(*model.Account)
	return a, args.Error(1)
}

func (m *mockStore) Exists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

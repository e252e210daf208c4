package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage/snapshot"
)

func openSnapshot(t *testing.T, name string) *snapshot.Store {
	t.Helper()
	s, err := snapshot.Open(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	return s
}

func TestSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("copies accounts and links into an empty store", func(t *testing.T) {
		src := openSnapshot(t, "src.json")
		dst := openSnapshot(t, "dst.json")

		err := src.WithExclusiveAccess(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.Save(ctx, &model.Account{Email: "a@x.com", Password: "pw", Status: model.StatusQualified}))
			return tx.Save(ctx, &model.Account{Email: "b@x.com", Status: model.StatusIdle, Sold: true})
		})
		require.NoError(t, err)
		_, err = src.SetSheeridURL(ctx, "a@x.com", "https://s/a")
		require.NoError(t, err)

		n, err := storage.Seed(ctx, src, dst)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		want, err := src.List(ctx)
		require.NoError(t, err)
		got, err := dst.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("leaves a populated store alone", func(t *testing.T) {
		src := openSnapshot(t, "src.json")
		dst := openSnapshot(t, "dst.json")

		require.NoError(t, src.WithExclusiveAccess(ctx, func(tx storage.Tx) error {
			return tx.Save(ctx, &model.Account{Email: "a@x.com", Status: model.StatusIdle})
		}))
		require.NoError(t, dst.WithExclusiveAccess(ctx, func(tx storage.Tx) error {
			return tx.Save(ctx, &model.Account{Email: "z@x.com", Status: model.StatusIdle})
		}))

		n, err := storage.Seed(ctx, src, dst)
		require.NoError(t, err)
		assert.Zero(t, n)

		ok, err := dst.Exists(ctx, "a@x.com")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

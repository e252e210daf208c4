package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/httputil"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/service"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage/snapshot"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/verification"
)

type testServer struct {
	router http.Handler
	store  *snapshot.Store
}

type serverOptions struct {
	workerGuard    func(http.Handler) http.Handler
	adminGuard     func(http.Handler) http.Handler
	maxImportBytes int64
}

func newTestServer(t *testing.T, opts serverOptions, accounts ...model.Account) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := snapshot.Open(filepath.Join(dir, "accounts-state.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	journal, err := verification.OpenSQLite(ctx, filepath.Join(dir, "verify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	if len(accounts) > 0 {
		require.NoError(t, store.WithExclusiveAccess(ctx, func(tx storage.Tx) error {
			for i := range accounts {
				if err := tx.Save(ctx, &accounts[i]); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	if opts.maxImportBytes == 0 {
		opts.maxImportBytes = 1 << 20
	}
	h := NewPoolHandler(
		service.NewPoolService(store),
		service.NewImportService(store, true),
		service.NewVerificationService(journal, store),
		opts.workerGuard,
		opts.adminGuard,
		opts.maxImportBytes,
	)

	r := chi.NewRouter()
	r.Mount("/api", h.Routes())
	return &testServer{router: r, store: store}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) account(t *testing.T, email string) *model.Account {
	t.Helper()
	a, err := s.store.Get(context.Background(), email)
	require.NoError(t, err)
	return a
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestPoll(t *testing.T) {
	srv := newTestServer(t, serverOptions{},
		model.Account{Email: "a@x.com", Password: "pw", Status: model.StatusIdle},
	)

	rec := srv.do(http.MethodGet, "/api/poll", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[model.Account](t, rec)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, model.StatusChecking, got.Status)

	rec = srv.do(http.MethodGet, "/api/poll", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCallback(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"qualified", map[string]string{"email": "a@x.com", "result": "QUALIFIED", "sheeridUrl": "https://s/1"}, http.StatusOK},
		{"invalid", map[string]string{"email": "a@x.com", "result": "invalid"}, http.StatusOK},
		{"non callback status", map[string]string{"email": "a@x.com", "result": "PRODUCT"}, http.StatusBadRequest},
		{"missing result", map[string]string{"email": "a@x.com"}, http.StatusBadRequest},
		{"missing email", map[string]string{"result": "QUALIFIED"}, http.StatusBadRequest},
		{"unknown account", map[string]string{"email": "ghost@x.com", "result": "QUALIFIED"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, serverOptions{}, model.Account{Email: "a@x.com", Status: model.StatusChecking})
			rec := srv.do(http.MethodPost, "/api/callback", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	t.Run("stores the link", func(t *testing.T) {
		srv := newTestServer(t, serverOptions{}, model.Account{Email: "a@x.com", Status: model.StatusChecking})
		rec := srv.do(http.MethodPost, "/api/callback", map[string]string{
			"email": "a@x.com", "result": "QUALIFIED", "sheeridUrl": "https://s/1",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		a := srv.account(t, "a@x.com")
		assert.Equal(t, model.StatusQualified, a.Status)
		assert.Equal(t, "https://s/1", a.SheeridURL)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := newTestServer(t, serverOptions{})
		req := httptest.NewRequest(http.MethodPost, "/api/callback", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", string(decodeBody[httputil.ErrorResponse](t, rec).Code))
	})
}

func TestSheerid(t *testing.T) {
	srv := newTestServer(t, serverOptions{}, model.Account{Email: "a@x.com", Status: model.StatusQualified})

	rec := srv.do(http.MethodPost, "/api/sheerid", map[string]string{"email": "a@x.com", "sheeridUrl": "https://s/2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://s/2", srv.account(t, "a@x.com").SheeridURL)

	rec = srv.do(http.MethodPost, "/api/sheerid", map[string]string{"email": "a@x.com", "sheeridUrl": ""})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, srv.account(t, "a@x.com").SheeridURL)

	rec = srv.do(http.MethodPost, "/api/sheerid", map[string]string{"email": "a@x.com", "sheeridUrl": strings.Repeat("x", 2049)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/sheerid", map[string]string{"email": "ghost@x.com", "sheeridUrl": "https://s"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountsAndInfo(t *testing.T) {
	srv := newTestServer(t, serverOptions{},
		model.Account{Email: "b@x.com", Status: model.StatusQualified},
		model.Account{Email: "a@x.com", Status: model.StatusIdle},
	)

	rec := srv.do(http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[model.StatusView](t, rec)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, "a@x.com", view.Accounts[0].Email)
	assert.Equal(t, 1, view.Counts[model.StatusQualified])

	rec = srv.do(http.MethodGet, "/api/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"storage": "snapshot"}, decodeBody[map[string]string](t, rec))

	rec = srv.do(http.MethodGet, "/api/accounts-by-status?status=qualified", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b@x.com", decodeBody[model.Account](t, rec).Email)

	rec = srv.do(http.MethodGet, "/api/accounts-by-status?status=PRODUCT", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(http.MethodGet, "/api/accounts-by-status?status=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodGet, "/api/accounts-by-status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusOperations(t *testing.T) {
	srv := newTestServer(t, serverOptions{},
		model.Account{Email: "a@x.com", Status: model.StatusChecking},
		model.Account{Email: "b@x.com", Status: model.StatusChecking},
		model.Account{Email: "c@x.com", Status: model.StatusQualified},
	)

	rec := srv.do(http.MethodPost, "/api/reset-checking", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int64{"reset": 2}, decodeBody[map[string]int64](t, rec))

	rec = srv.do(http.MethodPost, "/api/status", map[string]string{"email": "a@x.com", "status": "invalid"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusInvalid, srv.account(t, "a@x.com").Status)

	rec = srv.do(http.MethodPost, "/api/status", map[string]string{"email": "a@x.com", "status": "WAITING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/status", map[string]string{"email": "ghost@x.com", "status": "IDLE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodPost, "/api/finished", map[string]any{"email": "c@x.com", "finished": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusProduct, srv.account(t, "c@x.com").Status)

	rec = srv.do(http.MethodPost, "/api/finished", map[string]any{"email": "c@x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/sold", map[string]any{"email": "b@x.com", "sold": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, srv.account(t, "b@x.com").Sold)

	rec = srv.do(http.MethodPost, "/api/sold", map[string]any{"email": "ghost@x.com", "sold": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodPost, "/api/restore-statuses", map[string]any{"items": []map[string]string{
		{"email": "a@x.com", "status": "IDLE"},
		{"email": "ghost@x.com", "status": "IDLE"},
		{"email": "b@x.com", "status": "???"},
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RestoreResult{Updated: 1, Skipped: 2}, decodeBody[model.RestoreResult](t, rec))

	rec = srv.do(http.MethodPost, "/api/restore-statuses", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAccount(t *testing.T) {
	srv := newTestServer(t, serverOptions{},
		model.Account{Email: "a@x.com", Password: "pw", Status: model.StatusIdle},
		model.Account{Email: "b@x.com", Status: model.StatusIdle},
	)

	rec := srv.do(http.MethodPost, "/api/update-account", map[string]any{
		"originalEmail": "a@x.com", "email": "z@x.com", "password": "new", "status": "qualified",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, srv.account(t, "a@x.com"))
	z := srv.account(t, "z@x.com")
	require.NotNil(t, z)
	assert.Equal(t, "new", z.Password)
	assert.Equal(t, model.StatusQualified, z.Status)

	rec = srv.do(http.MethodPost, "/api/update-account", map[string]any{"originalEmail": "z@x.com", "email": "b@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	conflict := decodeBody[httputil.ErrorResponse](t, rec)
	assert.Equal(t, apperrors.ErrCodeConflict, conflict.Code)
	assert.Equal(t, map[string]any{"email": "b@x.com"}, conflict.Details)

	rec = srv.do(http.MethodPost, "/api/update-account", map[string]any{"originalEmail": "ghost@x.com", "email": "ghost@x.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodPost, "/api/update-account", map[string]any{"originalEmail": "z@x.com", "email": "z@x.com", "status": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletes(t *testing.T) {
	srv := newTestServer(t, serverOptions{},
		model.Account{Email: "a@x.com", Status: model.StatusIdle},
		model.Account{Email: "b@x.com", Status: model.StatusIdle},
		model.Account{Email: "c@x.com", Status: model.StatusIdle, Sold: true},
		model.Account{Email: "d@x.com", Status: model.StatusIdle},
	)

	rec := srv.do(http.MethodPost, "/api/delete", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(http.MethodPost, "/api/delete", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = srv.do(http.MethodPost, "/api/delete", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/delete-batch", map[string]any{"emails": []string{"b@x.com", "ghost@x.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int64{"deleted": 1}, decodeBody[map[string]int64](t, rec))
	rec = srv.do(http.MethodPost, "/api/delete-batch", map[string]any{"emails": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/delete-sold", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int64{"deleted": 1}, decodeBody[map[string]int64](t, rec))

	view, err := srv.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "d@x.com", view[0].Email)
}

func TestGuards(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	t.Run("admin guard leaves worker routes open", func(t *testing.T) {
		srv := newTestServer(t, serverOptions{adminGuard: deny})

		assert.Equal(t, http.StatusNoContent, srv.do(http.MethodGet, "/api/poll", nil).Code)
		assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodGet, "/api/accounts", nil).Code)
		assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodPost, "/api/import", nil).Code)
		assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/info", nil).Code)
	})

	t.Run("worker guard leaves admin routes open", func(t *testing.T) {
		srv := newTestServer(t, serverOptions{workerGuard: deny})

		assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodGet, "/api/poll", nil).Code)
		assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodPost, "/api/verify-status", nil).Code)
		assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/accounts", nil).Code)
	})
}

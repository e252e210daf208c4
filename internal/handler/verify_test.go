package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
)

func TestVerifyRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{},
		model.Account{Email: "a@x.com", Status: model.StatusQualified},
	)

	rec := srv.do(http.MethodPost, "/api/verify-history", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := decodeBody[model.VerifyHistory](t, rec)
	assert.Equal(t, "a@x.com", entry.Email)

	rec = srv.do(http.MethodPost, "/api/verify-history", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodGet, "/api/verify-history?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[struct {
		Items []model.VerifyHistory `json:"items"`
	}](t, rec)
	require.Len(t, history.Items, 1)
	assert.Equal(t, entry.ID, history.Items[0].ID)

	rec = srv.do(http.MethodPost, "/api/verify-status", map[string]string{"email": "a@x.com", "status": "SUCCESS", "message": "ok"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(http.MethodPost, "/api/verify-status", map[string]string{"email": "", "status": "SUCCESS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/verify-statuses", map[string]any{"emails": []string{"a@x.com", "ghost@x.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	statuses := decodeBody[struct {
		Items []model.VerifyStatus `json:"items"`
	}](t, rec)
	require.Len(t, statuses.Items, 1)
	assert.Equal(t, "SUCCESS", statuses.Items[0].Status)
	assert.Equal(t, "ok", statuses.Items[0].Message)

	rec = srv.do(http.MethodPost, "/api/verify-statuses", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

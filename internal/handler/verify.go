package handler

import (
	"net/http"
	"strconv"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
)

// GET /api/verify-history?limit=50
func (h *PoolHandler) ListVerifyHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.verifyService.RecentHistory(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err, "failed to list verify history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// POST /api/verify-history
func (h *PoolHandler) AddVerifyHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.verifyService.AddHistory(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err, "failed to add verify history")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// POST /api/verify-status
func (h *PoolHandler) UpsertVerifyStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	status, err := h.verifyService.UpsertStatus(r.Context(), req.Email, req.Status, req.Message)
	if err != nil {
		writeServiceError(w, err, "failed to upsert verify status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// POST /api/verify-statuses
func (h *PoolHandler) VerifyStatuses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	items, err := h.verifyService.Statuses(r.Context(), req.Emails)
	if err != nil {
		writeServiceError(w, err, "failed to load verify statuses")
		return
	}
	if items == nil {
		items = []model.VerifyStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/config"
	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/httputil"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/middleware"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/service"
)

type PoolHandler struct {
	poolService    *service.PoolService
	importService  *service.ImportService
	verifyService  *service.VerificationService
	workerGuard    func(http.Handler) http.Handler
	adminGuard     func(http.Handler) http.Handler
	maxImportBytes int64
}

// NewPoolHandler wires the /api surface. workerGuard wraps the routes
// workers call; adminGuard wraps the operator routes. Either may be nil.
func NewPoolHandler(
	poolService *service.PoolService,
	importService *service.ImportService,
	verifyService *service.VerificationService,
	workerGuard func(http.Handler) http.Handler,
	adminGuard func(http.Handler) http.Handler,
	maxImportBytes int64,
) *PoolHandler {
	return &PoolHandler{
		poolService:    poolService,
		importService:  importService,
		verifyService:  verifyService,
		workerGuard:    orPassThrough(workerGuard),
		adminGuard:     orPassThrough(adminGuard),
		maxImportBytes: maxImportBytes,
	}
}

func orPassThrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

func (h *PoolHandler) Routes() chi.Router {
	r := chi.NewRouter()
	bodyLimit := middleware.NewBodyLimitMiddleware(config.DefaultBodyLimit)

	r.Get("/info", h.Info)

	r.Group(func(r chi.Router) {
		r.Use(h.workerGuard)
		r.Use(bodyLimit.Handler)

		r.Get("/poll", h.Poll)
		r.Post("/callback", h.Callback)
		r.Post("/sheerid", h.UpdateSheerid)
		r.Post("/verify-history", h.AddVerifyHistory)
		r.Post("/verify-status", h.UpsertVerifyStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.adminGuard)

		r.With(middleware.NewBodyLimitMiddleware(h.maxImportBytes).Handler).Post("/import", h.Import)

		r.Group(func(r chi.Router) {
			r.Use(bodyLimit.Handler)

			r.Get("/accounts", h.ListAccounts)
			r.Get("/accounts-by-status", h.AccountByStatus)
			r.Post("/reset-checking", h.ResetChecking)
			r.Post("/sold", h.UpdateSold)
			r.Post("/finished", h.UpdateFinished)
			r.Post("/status", h.UpdateStatus)
			r.Post("/update-account", h.UpdateAccount)
			r.Post("/restore-statuses", h.RestoreStatuses)
			r.Post("/delete", h.DeleteAccount)
			r.Post("/delete-batch", h.DeleteAccounts)
			r.Post("/delete-sold", h.DeleteSold)
			r.Get("/verify-history", h.ListVerifyHistory)
			r.Post("/verify-statuses", h.VerifyStatuses)
		})
	})

	return r
}

// GET /api/poll
// Claims the next idle account. 204 when the pool is drained.
func (h *PoolHandler) Poll(w http.ResponseWriter, r *http.Request) {
	account, err := h.poolService.Claim(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to claim account")
		return
	}
	if account == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// POST /api/callback
func (h *PoolHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Result     string `json:"result"`
		SheeridURL string `json:"sheeridUrl"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.poolService.Resolve(r.Context(), req.Email, req.Result, req.SheeridURL)
	if err != nil {
		writeServiceError(w, err, "failed to apply callback")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// POST /api/sheerid
func (h *PoolHandler) UpdateSheerid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		SheeridURL string `json:"sheeridUrl"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ok, err := h.poolService.SetAuxiliaryLink(r.Context(), req.Email, req.SheeridURL)
	if err != nil {
		writeServiceError(w, err, "failed to update sheerid link")
		return
	}
	if !ok {
		httputil.WriteError(w, apperrors.NotFound("Account"))
		return
	}
	writeOK(w)
}

// GET /api/info
func (h *PoolHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"storage": h.poolService.Backend()})
}

// GET /api/accounts
func (h *PoolHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	view, err := h.poolService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /api/accounts-by-status?status=QUALIFIED
func (h *PoolHandler) AccountByStatus(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if strings.TrimSpace(raw) == "" {
		httputil.WriteError(w, apperrors.MissingRequired("status"))
		return
	}
	status, ok := model.ParseStatus(raw)
	if !ok {
		httputil.WriteError(w, apperrors.InvalidInput("status", "unknown status"))
		return
	}

	account, err := h.poolService.FindByStatus(r.Context(), status)
	if err != nil {
		writeServiceError(w, err, "failed to find account by status")
		return
	}
	if account == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// POST /api/reset-checking
func (h *PoolHandler) ResetChecking(w http.ResponseWriter, r *http.Request) {
	n, err := h.poolService.ResetStaleClaims(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to reset checking accounts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"reset": n})
}

// POST /api/sold
func (h *PoolHandler) UpdateSold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Sold  *bool  `json:"sold"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Sold == nil {
		httputil.WriteError(w, apperrors.MissingRequired("email/sold"))
		return
	}

	ok, err := h.poolService.SetSold(r.Context(), req.Email, *req.Sold)
	h.writeFlagResult(w, ok, err)
}

// POST /api/finished
func (h *PoolHandler) UpdateFinished(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Finished *bool  `json:"finished"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Finished == nil {
		httputil.WriteError(w, apperrors.MissingRequired("email/finished"))
		return
	}

	ok, err := h.poolService.SetFinished(r.Context(), req.Email, *req.Finished)
	h.writeFlagResult(w, ok, err)
}

func (h *PoolHandler) writeFlagResult(w http.ResponseWriter, ok bool, err error) {
	if err != nil {
		writeServiceError(w, err, "failed to update account")
		return
	}
	if !ok {
		httputil.WriteError(w, apperrors.NotFound("Account"))
		return
	}
	writeOK(w)
}

// POST /api/status
// Operator override: any status, no transition check.
func (h *PoolHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string `json:"email"`
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Status) == "" {
		httputil.WriteError(w, apperrors.MissingRequired("email/status"))
		return
	}
	status, ok := model.ParseStatus(req.Status)
	if !ok {
		httputil.WriteError(w, apperrors.InvalidInput("status", "unknown status"))
		return
	}

	account, err := h.poolService.SetStatus(r.Context(), req.Email, status)
	if err != nil {
		writeServiceError(w, err, "failed to set status")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// POST /api/update-account
func (h *PoolHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OriginalEmail      string  `json:"originalEmail"`
		Email              string  `json:"email"`
		Password           *string `json:"password"`
		RecoveryEmail      *string `json:"recoveryEmail"`
		AuthenticatorToken *string `json:"authenticatorToken"`
		Status             string  `json:"status"`
		Sold               *bool   `json:"sold"`
		Finished           *bool   `json:"finished"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	params := model.UpdateAccountParams{
		OriginalEmail:      req.OriginalEmail,
		Email:              req.Email,
		Password:           req.Password,
		RecoveryEmail:      req.RecoveryEmail,
		AuthenticatorToken: req.AuthenticatorToken,
		Sold:               req.Sold,
		Finished:           req.Finished,
	}
	if strings.TrimSpace(req.Status) != "" {
		status, ok := model.ParseStatus(req.Status)
		if !ok {
			httputil.WriteError(w, apperrors.InvalidInput("status", "unknown status"))
			return
		}
		params.Status = &status
	}

	if err := h.poolService.UpdateAccount(r.Context(), params); err != nil {
		writeServiceError(w, err, "failed to update account")
		return
	}
	writeOK(w)
}

// POST /api/restore-statuses
func (h *PoolHandler) RestoreStatuses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []model.RestoreItem `json:"items"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		httputil.WriteError(w, apperrors.MissingRequired("items"))
		return
	}

	result, err := h.poolService.RestoreMany(r.Context(), req.Items)
	if err != nil {
		writeServiceError(w, err, "failed to restore statuses")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /api/delete
func (h *PoolHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		httputil.WriteError(w, apperrors.MissingRequired("email"))
		return
	}

	ok, err := h.poolService.Delete(r.Context(), req.Email)
	h.writeFlagResult(w, ok, err)
}

// POST /api/delete-batch
func (h *PoolHandler) DeleteAccounts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Emails) == 0 {
		httputil.WriteError(w, apperrors.MissingRequired("emails"))
		return
	}

	n, err := h.poolService.DeleteMany(r.Context(), req.Emails)
	if err != nil {
		writeServiceError(w, err, "failed to delete accounts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// POST /api/delete-sold
func (h *PoolHandler) DeleteSold(w http.ResponseWriter, r *http.Request) {
	n, err := h.poolService.DeleteAllSold(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to delete sold accounts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

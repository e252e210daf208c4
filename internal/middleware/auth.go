package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/audit"
	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/util"
)

const AdminPasswordHeader = "X-Admin-Password"

// AdminAuthMiddleware guards operator routes with a bcrypt hash. With no
// hash configured every request passes.
type AdminAuthMiddleware struct {
	passwordHash string
}

func NewAdminAuthMiddleware(passwordHash string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{passwordHash: passwordHash}
}

func (m *AdminAuthMiddleware) Enabled() bool {
	return m.passwordHash != ""
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		password := r.Header.Get(AdminPasswordHeader)
		if password == "" {
			writeError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, "Missing admin password")
			return
		}

		if !util.CheckPasswordHash(password, m.passwordHash) {
			log.Warn().Str("path", r.URL.Path).Msg("admin auth: invalid password attempt")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			writeError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, "Invalid admin password")
			return
		}

		next.ServeHTTP(w, r)
	})
}

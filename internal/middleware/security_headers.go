package middleware

import (
	"net/http"
)

// SecurityHeadersMiddleware marks every response as a non-cacheable JSON
// API response. Account payloads carry credentials.
type SecurityHeadersMiddleware struct {
	isProduction bool
}

func NewSecurityHeadersMiddleware(isProduction bool) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{isProduction: isProduction}
}

func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if m.isProduction {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

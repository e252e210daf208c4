package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/config"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Health answers 200 while every check passes and 503 otherwise. With no
// checks it only reports liveness.
func Health(backend string, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}

		body := map[string]any{
			"status":    status,
			"storage":   backend,
			"timestamp": time.Now().UnixMilli(),
		}
		if len(failed) > 0 {
			body["failed"] = failed
		}
		writeJSON(w, code, body)
	}
}

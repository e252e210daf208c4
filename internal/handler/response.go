package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps service errors to responses. Anything that is not
// an AppError is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, err error, msg string) {
	if !apperrors.IsAppError(err) {
		log.Error().Err(err).Msg(msg)
	}
	httputil.WriteError(w, err)
}

// decodeJSON reads the request body into dst, answering 400 or 413 itself
// when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge,
				apperrors.InvalidInput("body", "too large"))
			return false
		}
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return false
	}
	return true
}

package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	status := StatusFromCode(appErr.Code)
	response := ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}

	WriteJSON(w, status, response)
}

// WriteErrorWithStatus writes an error with a specific HTTP status code
func WriteErrorWithStatus(w http.ResponseWriter, status int, err *apperrors.AppError) {
	response := ErrorResponse{
		Error:   err.Message,
		Code:    err.Code,
		Details: err.Details,
	}
	WriteJSON(w, status, response)
}

// StatusFromCode maps ErrorCode to HTTP status code
func StatusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired:
		return http.StatusBadRequest

	// 401 Unauthorized
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized

	// 404 Not Found
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case apperrors.ErrCodeConflict:
		return http.StatusConflict

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case apperrors.ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

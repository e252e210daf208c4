package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Access
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Storage
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// Conflict is returned when a rename targets a key that already exists.
func Conflict(resource string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("%s already exists", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

// BackendUnavailable wraps a failure of the active storage backend.
// Pool state is unchanged when this is returned.
func BackendUnavailable(backend string, cause error) *AppError {
	return Wrap(ErrCodeBackendUnavailable, fmt.Sprintf("Storage backend unavailable: %s", backend), cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

package middleware

import (
	"net/http"

	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/httputil"
)

func writeError(w http.ResponseWriter, status int, code apperrors.ErrorCode, message string) {
	httputil.WriteErrorWithStatus(w, status, apperrors.New(code, message))
}

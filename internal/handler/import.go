package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/httputil"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/importer"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
)

type importRequest struct {
	Content  string `json:"content"`
	Mode     string `json:"mode"`
	Template string `json:"template"`
}

// POST /api/import
// Accepts {"content","mode","template"} as JSON, or the raw batch as the
// body with mode and template in the query string.
func (h *PoolHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if !decodeJSON(w, r, &req) {
			return
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge,
					apperrors.InvalidInput("body", "too large"))
				return
			}
			httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
			return
		}
		req.Content = string(body)
		req.Mode = r.URL.Query().Get("mode")
		req.Template = r.URL.Query().Get("template")
	}

	mode, ok := model.ParseImportMode(req.Mode)
	if !ok {
		httputil.WriteError(w, apperrors.InvalidInput("mode", "must be OVERWRITE or APPEND"))
		return
	}
	tmpl, ok := importer.ParseTemplate(req.Template)
	if !ok {
		log.Warn().Str("template", req.Template).Msg("unknown import template, inferring per line")
		tmpl = importer.TemplateAuto
	}

	result, err := h.importService.Import(r.Context(), req.Content, mode, tmpl)
	if err != nil {
		writeServiceError(w, err, "failed to import accounts")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

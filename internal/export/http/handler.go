// Package exporthttp serves finalized artifact downloads.
package exporthttp

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-books/meridian/internal/export"
	"github.com/meridian-books/meridian/internal/platform/httpx"
	"github.com/meridian-books/meridian/internal/reports"
)

type Handler struct {
	logger    *slog.Logger
	engine    *export.Engine
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, engine *export.Engine) *Handler {
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// MountRoutes registers export routes under /companies/{companyID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/exports", h.export)
}

type exportRequest struct {
	Envelope reports.Envelope `json:"envelope" validate:"required"`
	Format   string           `json:"format" validate:"required,oneof=JSON CSV"`
	Mode     string           `json:"mode" validate:"required"`
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	var req exportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if req.Envelope.CompanyID != companyID {
		httpx.RespondError(w, fmt.Errorf("%w: envelope company mismatch", httpx.ErrValidation))
		return
	}

	artifact, err := h.engine.ExportFinalizedReport(r.Context(), req.Envelope, export.Format(req.Format), export.Mode(req.Mode))
	if err != nil {
		h.logger.Warn("export rejected", slog.String("company", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	contentType := "application/json"
	if artifact.Format == export.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Integrity-Hash", artifact.IntegrityHash)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s-%s.%s", artifact.CompanyID, artifact.Kind, fileExt(artifact.Format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Body)
}

func fileExt(f export.Format) string {
	if f == export.FormatCSV {
		return "csv"
	}
	return "json"
}

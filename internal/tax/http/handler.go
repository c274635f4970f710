// Package taxhttp serves tax summary export.
package taxhttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-books/meridian/internal/platform/httpx"
	"github.com/meridian-books/meridian/internal/reports"
	"github.com/meridian-books/meridian/internal/tax"
)

type Handler struct {
	logger    *slog.Logger
	engine    *tax.Engine
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, engine *tax.Engine) *Handler {
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// MountRoutes registers tax routes under /companies/{companyID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tax/export", h.export)
}

type exportRequest struct {
	PeriodID      string   `json:"periodId" validate:"required,max=100"`
	From          string   `json:"from" validate:"required,datetime=2006-01-02"`
	To            string   `json:"to" validate:"required,datetime=2006-01-02"`
	Jurisdictions []string `json:"jurisdictions" validate:"omitempty,dive,max=10"`
}

type exportResponse struct {
	Summary  tax.Summary      `json:"summary"`
	Envelope reports.Envelope `json:"envelope"`
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
	from, _ := time.Parse("2006-01-02", req.From)
	to, _ := time.Parse("2006-01-02", req.To)

	summary, err := h.engine.ExportTaxSummary(r.Context(), tax.ExportConfig{
		CompanyID:     companyID,
		PeriodID:      req.PeriodID,
		From:          from,
		To:            to,
		Jurisdictions: req.Jurisdictions,
	})
	if err != nil {
		h.logger.Warn("tax export rejected", slog.String("company", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	envelope, err := tax.BuildExportEnvelope(summary)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exportResponse{Summary: summary, Envelope: envelope})
}

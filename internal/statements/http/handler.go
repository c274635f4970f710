// Package statementshttp serves derived financial statements.
package statementshttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-books/meridian/internal/platform/httpx"
	"github.com/meridian-books/meridian/internal/statements"
)

type Handler struct {
	logger  *slog.Logger
	builder *statements.Builder
}

func NewHandler(logger *slog.Logger, builder *statements.Builder) *Handler {
	return &Handler{logger: logger, builder: builder}
}

// MountRoutes registers statement routes under /companies/{companyID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/statements/trial-balance", h.asOf(h.builder.BuildTrialBalance))
	r.Get("/statements/balance-sheet", h.asOf(h.builder.BuildBalanceSheet))
	r.Get("/statements/income-statement", h.ranged(h.builder.BuildIncomeStatement))
	r.Get("/statements/cash-flow", h.ranged(h.builder.BuildCashFlowDirect))
}

func (h *Handler) asOf(build func(ctx context.Context, companyID string, asOf time.Time) (*statements.Statement, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID := chi.URLParam(r, "companyID")
		asOf, err := time.Parse("2006-01-02", r.URL.Query().Get("asOf"))
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: asOf must be YYYY-MM-DD", httpx.ErrValidation))
			return
		}
		st, err := build(r.Context(), companyID, asOf)
		if err != nil {
			h.logger.Warn("statement build failed", slog.String("company", companyID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, st)
	}
}

func (h *Handler) ranged(build func(ctx context.Context, companyID string, from, to time.Time) (*statements.Statement, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID := chi.URLParam(r, "companyID")
		from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: from must be YYYY-MM-DD", httpx.ErrValidation))
			return
		}
		to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: to must be YYYY-MM-DD", httpx.ErrValidation))
			return
		}
		if to.Before(from) {
			httpx.RespondError(w, fmt.Errorf("%w: to precedes from", httpx.ErrValidation))
			return
		}
		st, err := build(r.Context(), companyID, from, to)
		if err != nil {
			h.logger.Warn("statement build failed", slog.String("company", companyID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, st)
	}
}

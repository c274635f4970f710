// Package periodshttp exposes the period lock registry: resolution by date
// and the administrative close/lock/reopen transitions.
package periodshttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-books/meridian/internal/periods"
	"github.com/meridian-books/meridian/internal/platform/httpx"
)

type Handler struct {
	logger    *slog.Logger
	registry  *periods.Registry
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, registry *periods.Registry) *Handler {
	return &Handler{logger: logger, registry: registry, validator: validator.New()}
}

// MountRoutes registers period routes under /companies/{companyID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods", h.resolve)
	r.Post("/periods/soft-close", h.transition(h.registry.SoftClose))
	r.Post("/periods/hard-lock", h.transition(h.registry.HardLock))
	r.Post("/periods/reopen", h.transition(h.registry.Reopen))
}

type periodResponse struct {
	PeriodID  string `json:"periodId"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	State     string `json:"state"`
	ChangedBy string `json:"changedBy,omitempty"`
}

func toPeriodResponse(p periods.Period) periodResponse {
	return periodResponse{
		PeriodID:  p.PeriodID,
		CompanyID: p.CompanyID,
		Name:      p.Name,
		StartDate: p.StartDate.Format("2006-01-02"),
		EndDate:   p.EndDate.Format("2006-01-02"),
		State:     string(p.State),
		ChangedBy: p.ChangedBy,
	}
}

// resolve returns the lock state covering ?date=YYYY-MM-DD. Lock state is
// only ever resolved by date; there is no lookup by caller-supplied id.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation))
		return
	}
	period, err := h.registry.ResolveByDate(r.Context(), companyID, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

type transitionRequest struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Actor string `json:"actor" validate:"required,max=200"`
}

type transitionFunc func(ctx context.Context, companyID string, date time.Time, actor string) (periods.Period, error)

func (h *Handler) transition(apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID := chi.URLParam(r, "companyID")
		var req transitionRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
			return
		}
		date, _ := time.Parse("2006-01-02", req.Date)
		period, err := apply(r.Context(), companyID, date, req.Actor)
		if err != nil {
			h.logger.Warn("period transition rejected",
				slog.String("company", companyID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
	}
}

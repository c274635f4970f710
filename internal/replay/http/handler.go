// Package replayhttp exposes replay and fingerprint verification.
package replayhttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-books/meridian/internal/platform/httpx"
	"github.com/meridian-books/meridian/internal/replay"
)

type Handler struct {
	logger    *slog.Logger
	engine    *replay.Engine
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, engine *replay.Engine) *Handler {
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// MountRoutes registers replay routes under /companies/{companyID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/replay", h.replay)
}

type replayRequest struct {
	From                string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To                  string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	ExpectedFingerprint string `json:"expectedFingerprint" validate:"omitempty,len=64,hexadecimal"`
}

type balanceResponse struct {
	AccountID string `json:"accountId"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Net       string `json:"net"`
}

type replayResponse struct {
	CompanyID    string            `json:"companyId"`
	Fingerprint  string            `json:"fingerprint"`
	Transactions int               `json:"transactions"`
	Balances     []balanceResponse `json:"balances"`
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	var req replayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	opts := replay.Options{ExpectedFingerprint: req.ExpectedFingerprint}
	if req.From != "" {
		opts.From, _ = time.Parse("2006-01-02", req.From)
	}
	if req.To != "" {
		opts.To, _ = time.Parse("2006-01-02", req.To)
	}

	res, err := h.engine.Replay(r.Context(), companyID, opts)
	if err != nil {
		h.logger.Warn("replay failed", slog.String("company", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	balances := make([]balanceResponse, 0, len(res.Balances))
	for accountID, agg := range res.Balances {
		balances = append(balances, balanceResponse{
			AccountID: accountID,
			Debit:     agg.Debit.String(),
			Credit:    agg.Credit.String(),
			Net:       agg.Net().String(),
		})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].AccountID < balances[j].AccountID })

	httpx.JSON(w, http.StatusOK, replayResponse{
		CompanyID:    res.CompanyID,
		Fingerprint:  res.Fingerprint,
		Transactions: len(res.Log),
		Balances:     balances,
	})
}

// Package accesshttp serves accountant access token issuance and
// verification.
package accesshttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-books/meridian/internal/access"
	"github.com/meridian-books/meridian/internal/platform/httpx"
)

type Handler struct {
	logger    *slog.Logger
	service   *access.Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *access.Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers token routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tokens", h.grant)
	r.Post("/tokens/verify", h.verify)
}

type grantRequest struct {
	CompanyID    string   `json:"companyId" validate:"required,max=100"`
	Subject      string   `json:"subject" validate:"required,max=200"`
	TTLSeconds   int64    `json:"ttlSeconds" validate:"required,gt=0"`
	Capabilities []string `json:"capabilities" validate:"required,min=1"`
}

type scopeResponse struct {
	CompanyID    string   `json:"companyId"`
	Subject      string   `json:"subject"`
	ValidFrom    string   `json:"validFrom"`
	ValidTo      string   `json:"validTo"`
	Capabilities []string `json:"capabilities"`
}

func toScopeResponse(s access.Scope) scopeResponse {
	return scopeResponse{
		CompanyID:    s.CompanyID,
		Subject:      s.Subject,
		ValidFrom:    s.ValidFrom.Format(time.RFC3339),
		ValidTo:      s.ValidTo.Format(time.RFC3339),
		Capabilities: s.Capabilities,
	}
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	token, scope, err := h.service.Grant(r.Context(), req.CompanyID, req.Subject,
		time.Duration(req.TTLSeconds)*time.Second, req.Capabilities)
	if err != nil {
		h.logger.Warn("token grant rejected", slog.String("company", req.CompanyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"scope": toScopeResponse(scope),
	})
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	scope, err := h.service.Verify(r.Context(), req.Token)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toScopeResponse(scope))
}

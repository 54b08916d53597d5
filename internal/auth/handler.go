package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/httpx"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// LoginRecorder counts login outcomes. A nil recorder disables counting.
type LoginRecorder interface {
	RecordLogin(outcome string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   LoginRecorder
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics LoginRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Login carries
// its own tighter rate limit on top of the global one.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/refresh", h.handleRefresh)
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Validation failed", fieldErrors(err))
		return
	}

	result, err := h.service.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLogin("failure")
		}
		httpx.RespondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordLogin("success")
	}
	httpx.Success(w, http.StatusOK, "Login successful", result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh" validate:"required"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Validation failed", fieldErrors(err))
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Token refreshed", result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := shared.IdentityFromContext(r.Context())
	if p == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.service.Logout(r.Context(), p.GetID()); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	httpx.Success(w, http.StatusOK, "Successfully logged out", nil)
}

// fieldErrors flattens validator errors into a field -> reason map.
func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

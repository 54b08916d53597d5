package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/httpx"
	"github.com/afnan2013/forewarn-ibf-portal/internal/rbac"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	// Self-service endpoints skip the capability check but still require an
	// authenticated active account.
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/me", h.profile)
		r.Put("/me", h.updateOwnProfile)
		r.Patch("/me", h.updateOwnProfile)
		r.Post("/change-password", h.changeOwnPassword)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapUserView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapUserChange))
		r.Put("/{id}", h.updateByAdmin)
		r.Patch("/{id}", h.updateByAdmin)
		r.Post("/{id}/activate", h.activate)
		r.Post("/{id}/deactivate", h.deactivate)
		r.Post("/{id}/change-password", h.changePasswordByAdmin)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapUserDelete))
		r.Delete("/{id}", h.delete)
	})
}

type registerRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Username  string  `json:"username" validate:"required,min=3,max=150"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName string  `json:"first_name" validate:"max=150"`
	LastName  string  `json:"last_name" validate:"max=150"`
	GroupIDs  []int64 `json:"group_ids"`
}

// Register creates a new identity. Mounted at POST /api/auth/register;
// requires the user:add capability (wired in the router).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Validation failed", fieldErrors(err))
		return
	}

	actor := shared.IdentityFromContext(r.Context())
	user, err := h.service.Register(r.Context(), actorID(actor), RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		GroupIDs:  req.GroupIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "User created", user.Profile())
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	list, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	profiles := make([]Profile, 0, len(list))
	for i := range list {
		profiles = append(profiles, list[i].Profile())
	}
	httpx.Success(w, http.StatusOK, "", map[string]any{
		"users":      profiles,
		"pagination": pagination,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", user.Profile())
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	p := shared.IdentityFromContext(r.Context())
	user, err := h.service.Get(r.Context(), p.GetID())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", user.Profile())
}

type profileUpdateRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	Username  *string `json:"username" validate:"omitempty,min=3,max=150"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

func (r profileUpdateRequest) toUpdate() ProfileUpdate {
	return ProfileUpdate{
		Email:     r.Email,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

func (h *Handler) updateOwnProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Validation failed", fieldErrors(err))
		return
	}

	p := shared.IdentityFromContext(r.Context())
	user, err := h.service.UpdateProfile(r.Context(), p.GetID(), req.toUpdate())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Profile updated", user.Profile())
}

type adminUpdateRequest struct {
	profileUpdateRequest
	GroupIDs *[]int64 `json:"group_ids"`
}

func (h *Handler) updateByAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req adminUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Validation failed", fieldErrors(err))
		return
	}

	actor := shared.IdentityFromContext(r.Context())
	user, err := h.service.UpdateByAdmin(r.Context(), actorID(actor), id, AdminUpdateInput{
		ProfileUpdate: req.toUpdate(),
		GroupIDs:      req.GroupIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "User updated", user.Profile())
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actorID(actor), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "User deleted", nil)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, desired bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	if err := h.service.SetActive(r.Context(), actorID(actor), id, desired); err != nil {
		httpx.RespondError(w, err)
		return
	}
	message := "User deactivated"
	if desired {
		message = "User activated"
	}
	httpx.Success(w, http.StatusOK, message, nil)
}

type adminPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h *Handler) changePasswordByAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req adminPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Validation failed", fieldErrors(err))
		return
	}

	actor := shared.IdentityFromContext(r.Context())
	if err := h.service.ChangePasswordByAdmin(r.Context(), actorID(actor), id, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Password changed", nil)
}

type ownPasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h *Handler) changeOwnPassword(w http.ResponseWriter, r *http.Request) {
	var req ownPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Validation failed", fieldErrors(err))
		return
	}

	p := shared.IdentityFromContext(r.Context())
	if err := h.service.ChangeOwnPassword(r.Context(), p.GetID(), req.OldPassword, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Password changed", nil)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "Invalid user id", nil)
		return 0, false
	}
	return id, true
}

func actorID(p shared.Principal) int64 {
	if p == nil {
		return 0
	}
	return p.GetID()
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

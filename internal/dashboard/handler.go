package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/httpx"
	"github.com/afnan2013/forewarn-ibf-portal/internal/rbac"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
	"github.com/afnan2013/forewarn-ibf-portal/internal/users"
)

// UserCounter reports account counts for the stats endpoint.
type UserCounter interface {
	CountUsers(ctx context.Context) (total int, active int, err error)
}

// GroupCounter reports the number of groups.
type GroupCounter interface {
	CountGroups(ctx context.Context) (int, error)
}

// PermissionSource resolves the caller's effective capability set.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]shared.Capability, error)
}

// IdentityStore loads the caller's full profile for the overview endpoint.
type IdentityStore interface {
	FindByID(ctx context.Context, id int64) (*users.Identity, error)
}

// Stats is the aggregate counters payload.
type Stats struct {
	TotalUsers    int `json:"total_users"`
	ActiveUsers   int `json:"active_users"`
	InactiveUsers int `json:"inactive_users"`
	TotalGroups   int `json:"total_groups"`
}

// Handler serves the dashboard aggregation endpoints.
type Handler struct {
	logger      *slog.Logger
	userCounts  UserCounter
	groupCounts GroupCounter
	perms       PermissionSource
	identities  IdentityStore
	rbac        rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, uc UserCounter, gc GroupCounter, perms PermissionSource, identities IdentityStore, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, userCounts: uc, groupCounts: gc, perms: perms, identities: identities, rbac: rbac}
}

// MountRoutes registers dashboard routes. Stats expose account totals so
// they sit behind user:view; the overview only describes the caller.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapUserView))
		r.Get("/stats", h.stats)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/overview", h.overview)
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	var (
		total, active int
		groups        int
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		total, active, err = h.userCounts.CountUsers(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = h.groupCounts.CountGroups(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("dashboard stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.Success(w, http.StatusOK, "", Stats{
		TotalUsers:    total,
		ActiveUsers:   active,
		InactiveUsers: total - active,
		TotalGroups:   groups,
	})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	principal := shared.IdentityFromContext(r.Context())
	if principal == nil {
		httpx.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	identity, err := h.identities.FindByID(r.Context(), principal.GetID())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caps, err := h.perms.EffectivePermissions(r.Context(), identity.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.Success(w, http.StatusOK, "", map[string]any{
		"user":        identity.Profile(),
		"permissions": caps,
	})
}

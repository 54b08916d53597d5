package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/afnan2013/forewarn-ibf-portal/internal/auth"
	"github.com/afnan2013/forewarn-ibf-portal/internal/dashboard"
	"github.com/afnan2013/forewarn-ibf-portal/internal/groups"
	"github.com/afnan2013/forewarn-ibf-portal/internal/observability"
	"github.com/afnan2013/forewarn-ibf-portal/internal/rbac"
	"github.com/afnan2013/forewarn-ibf-portal/internal/roles"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
	"github.com/afnan2013/forewarn-ibf-portal/internal/users"
	"github.com/afnan2013/forewarn-ibf-portal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Authenticator      *auth.Authenticator
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	GroupsHandler      *groups.Handler
	RolesHandler       *roles.Handler
	DashboardHandler   *dashboard.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobsHandler        *jobs.Handler
	RBACMiddleware     rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:        params.Logger,
		Config:        params.Config,
		Authenticator: params.Authenticator,
		Metrics:       params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			params.AuthHandler.MountRoutes(ar)
			// Registration is an admin action, not open signup.
			ar.Group(func(reg chi.Router) {
				reg.Use(params.RBACMiddleware.RequireAny(shared.CapUserAdd))
				reg.With(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
					Post("/register", params.UsersHandler.Register)
			})
		})
		api.Route("/users", params.UsersHandler.MountRoutes)
		api.Route("/groups", params.GroupsHandler.MountRoutes)
		api.Route("/roles", params.RolesHandler.MountRoutes)
		api.Route("/permissions", params.PermissionsHandler.MountRoutes)
		api.Route("/dashboard", params.DashboardHandler.MountRoutes)
		if params.JobsHandler != nil {
			api.Group(func(jr chi.Router) {
				jr.Use(params.RBACMiddleware.RequireStaff)
				jr.Route("/jobs", params.JobsHandler.MountRoutes)
			})
		}
	})

	return r
}

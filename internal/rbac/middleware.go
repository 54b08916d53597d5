package rbac

import (
	"log/slog"
	"net/http"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/httpx"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Middleware wires authorization checks into HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current identity holds at least one of the
// required capabilities. Unauthenticated requests get 401, authenticated
// requests without a matching capability get 403.
func (m Middleware) RequireAny(caps ...shared.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := shared.IdentityFromContext(r.Context())
			if p == nil {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if !p.Active() {
				httpx.RespondError(w, shared.ErrAccountInactive)
				return
			}
			granted, err := m.Service.EffectivePermissions(r.Context(), p.GetID())
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require any", slog.Any("error", err))
				}
				httpx.Error(w, http.StatusInternalServerError, "Internal server error", nil)
				return
			}
			grantedSet := make(map[shared.Capability]struct{}, len(granted))
			for _, c := range granted {
				grantedSet[c] = struct{}{}
			}
			for _, c := range caps {
				if _, ok := grantedSet[c]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.RespondError(w, shared.ErrInsufficientPermission)
		})
	}
}

// RequireAll ensures the current identity holds every one of the
// required capabilities.
func (m Middleware) RequireAll(caps ...shared.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := shared.IdentityFromContext(r.Context())
			if p == nil {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if !p.Active() {
				httpx.RespondError(w, shared.ErrAccountInactive)
				return
			}
			granted, err := m.Service.EffectivePermissions(r.Context(), p.GetID())
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require all", slog.Any("error", err))
				}
				httpx.Error(w, http.StatusInternalServerError, "Internal server error", nil)
				return
			}
			grantedSet := make(map[shared.Capability]struct{}, len(granted))
			for _, c := range granted {
				grantedSet[c] = struct{}{}
			}
			for _, c := range caps {
				if _, ok := grantedSet[c]; !ok {
					httpx.RespondError(w, shared.ErrInsufficientPermission)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated ensures a valid, active identity without any
// capability check. Used for self-service endpoints.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := shared.IdentityFromContext(r.Context())
		if err := m.Service.AuthorizeSelf(p); err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff ensures the identity carries the staff flag.
func (m Middleware) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := shared.IdentityFromContext(r.Context())
		if p == nil {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		if !p.Active() {
			httpx.RespondError(w, shared.ErrAccountInactive)
			return
		}
		if !p.Staff() {
			httpx.RespondError(w, shared.ErrInsufficientPermission)
			return
		}
		next.ServeHTTP(w, r)
	})
}

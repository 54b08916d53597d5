package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/httpx"
	"github.com/afnan2013/forewarn-ibf-portal/internal/rbac"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
	"github.com/afnan2013/forewarn-ibf-portal/internal/users"
)

type stubCounts struct {
	total, active, groups int
	err                   error
}

func (s stubCounts) CountUsers(ctx context.Context) (int, int, error) {
	return s.total, s.active, s.err
}

func (s stubCounts) CountGroups(ctx context.Context) (int, error) {
	return s.groups, s.err
}

type stubPerms struct {
	caps []shared.Capability
}

func (s stubPerms) EffectivePermissions(ctx context.Context, userID int64) ([]shared.Capability, error) {
	return s.caps, nil
}

func (s stubPerms) GroupPermissionCodes(ctx context.Context, userID int64) ([]string, error) {
	codes := make([]string, 0, len(s.caps))
	for _, c := range s.caps {
		codes = append(codes, string(c))
	}
	return codes, nil
}

func (s stubPerms) RoleCapabilityCodes(ctx context.Context, userID int64) ([]string, error) {
	return nil, nil
}

func (s stubPerms) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return nil, nil
}

type stubIdentities struct {
	identities map[int64]*users.Identity
}

func (s stubIdentities) FindByID(ctx context.Context, id int64) (*users.Identity, error) {
	u, ok := s.identities[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func newDashboardRouter(counts stubCounts, perms stubPerms, caller *users.Identity) http.Handler {
	identities := stubIdentities{identities: map[int64]*users.Identity{}}
	if caller != nil {
		identities.identities[caller.ID] = caller
	}
	mw := rbac.Middleware{Service: rbac.NewService(perms)}
	handler := NewHandler(nil, counts, counts, perms, identities, mw)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if caller != nil {
				req = req.WithContext(shared.ContextWithIdentity(req.Context(), caller))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/dashboard", handler.MountRoutes)
	return r
}

func get(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, httpx.Envelope) {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	var env httpx.Envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func TestStatsAggregatesCounters(t *testing.T) {
	caller := &users.Identity{ID: 1, Username: "amina", IsActive: true}
	counts := stubCounts{total: 10, active: 7, groups: 3}
	perms := stubPerms{caps: []shared.Capability{shared.CapUserView}}

	rr, env := get(t, newDashboardRouter(counts, perms, caller), "/api/dashboard/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 10, data["total_users"])
	assert.EqualValues(t, 7, data["active_users"])
	assert.EqualValues(t, 3, data["inactive_users"])
	assert.EqualValues(t, 3, data["total_groups"])
}

func TestStatsRequiresUserView(t *testing.T) {
	caller := &users.Identity{ID: 1, Username: "amina", IsActive: true}

	rr, _ := get(t, newDashboardRouter(stubCounts{}, stubPerms{}, caller), "/api/dashboard/stats")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOverviewDescribesCaller(t *testing.T) {
	caller := &users.Identity{ID: 1, Username: "amina", IsActive: true}
	perms := stubPerms{caps: []shared.Capability{shared.CapUserView, shared.CapGroupView}}

	rr, env := get(t, newDashboardRouter(stubCounts{}, perms, caller), "/api/dashboard/overview")
	require.Equal(t, http.StatusOK, rr.Code)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	user, ok := data["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "amina", user["username"])

	capsAny, ok := data["permissions"].([]any)
	require.True(t, ok)
	assert.Len(t, capsAny, 2)
}

func TestOverviewRequiresAuthentication(t *testing.T) {
	rr, _ := get(t, newDashboardRouter(stubCounts{}, stubPerms{}, nil), "/api/dashboard/overview")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

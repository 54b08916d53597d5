package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/httpx"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

func newAuthRouter(t *testing.T) (http.Handler, *stubIdentityStore, func()) {
	t.Helper()
	svc, store, cleanup := newLoginFixture(t)
	handler := NewHandler(nil, svc, nil)

	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	return r, store, cleanup
}

func postJSON(t *testing.T, router http.Handler, path string, body any) (*httptest.ResponseRecorder, httpx.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env httpx.Envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func TestLoginEndpointReturnsTokenPair(t *testing.T) {
	router, store, cleanup := newAuthRouter(t)
	defer cleanup()
	seedUser(store, t, true)

	rr, env := postJSON(t, router, "/api/auth/login", map[string]string{
		"identifier": "amina",
		"password":   "correcthorse",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["access"])
	assert.NotEmpty(t, data["refresh"])

	user, ok := data["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "amina", user["username"])
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	router, store, cleanup := newAuthRouter(t)
	defer cleanup()
	seedUser(store, t, true)

	rr, env := postJSON(t, router, "/api/auth/login", map[string]string{
		"identifier": "amina",
		"password":   "wrongpass",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid credentials", env.Message)
}

func TestLoginEndpointValidatesBody(t *testing.T) {
	router, _, cleanup := newAuthRouter(t)
	defer cleanup()

	rr, env := postJSON(t, router, "/api/auth/login", map[string]string{"identifier": "amina"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	fields, ok := env.Errors.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "Password")
}

func TestRefreshEndpointRotates(t *testing.T) {
	router, store, cleanup := newAuthRouter(t)
	defer cleanup()
	seedUser(store, t, true)

	_, loginEnv := postJSON(t, router, "/api/auth/login", map[string]string{
		"identifier": "amina",
		"password":   "correcthorse",
	})
	data := loginEnv.Data.(map[string]any)
	refresh := data["refresh"].(string)

	rr, env := postJSON(t, router, "/api/auth/refresh", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)

	// Replaying a rotated-out token fails.
	rr, _ = postJSON(t, router, "/api/auth/refresh", map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutEndpointRequiresIdentity(t *testing.T) {
	router, _, cleanup := newAuthRouter(t)
	defer cleanup()

	rr, _ := postJSON(t, router, "/api/auth/logout", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutEndpointDropsRefreshToken(t *testing.T) {
	svc, store, cleanup := newLoginFixture(t)
	defer cleanup()
	u := seedUser(store, t, true)
	handler := NewHandler(nil, svc, nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			req = req.WithContext(shared.ContextWithIdentity(req.Context(), u))
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/auth", handler.MountRoutes)

	result, err := svc.Login(context.Background(), "amina", "correcthorse")
	require.NoError(t, err)

	rr, env := postJSON(t, r, "/api/auth/logout", map[string]string{})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)

	_, err = svc.Refresh(context.Background(), result.RefreshToken)
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

func serveWith(t *testing.T, mw func(http.Handler) http.Handler, p shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), p))
	}
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)
	return rr
}

func TestRequireAnyRejectsAnonymous(t *testing.T) {
	mw := Middleware{Service: NewService(&stubSource{})}

	rr := serveWith(t, mw.RequireAny(shared.CapUserView), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAnyRejectsInactive(t *testing.T) {
	source := &stubSource{groupCodes: map[int64][]string{1: {"user:view"}}}
	mw := Middleware{Service: NewService(source)}

	rr := serveWith(t, mw.RequireAny(shared.CapUserView), stubPrincipal{id: 1, active: false})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAnyAllowsMatchingCapability(t *testing.T) {
	source := &stubSource{groupCodes: map[int64][]string{1: {"user:view"}}}
	mw := Middleware{Service: NewService(source)}

	rr := serveWith(t, mw.RequireAny(shared.CapUserDelete, shared.CapUserView), stubPrincipal{id: 1, active: true})
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireAnyRejectsMissingCapability(t *testing.T) {
	source := &stubSource{groupCodes: map[int64][]string{1: {"user:view"}}}
	mw := Middleware{Service: NewService(source)}

	rr := serveWith(t, mw.RequireAny(shared.CapUserDelete), stubPrincipal{id: 1, active: true})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAllNeedsEveryCapability(t *testing.T) {
	source := &stubSource{groupCodes: map[int64][]string{1: {"user:view", "user:change"}}}
	mw := Middleware{Service: NewService(source)}

	rr := serveWith(t, mw.RequireAll(shared.CapUserView, shared.CapUserChange), stubPrincipal{id: 1, active: true})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serveWith(t, mw.RequireAll(shared.CapUserView, shared.CapUserDelete), stubPrincipal{id: 1, active: true})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAuthenticated(t *testing.T) {
	mw := Middleware{Service: NewService(&stubSource{})}

	rr := serveWith(t, mw.RequireAuthenticated, stubPrincipal{id: 1, active: true})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serveWith(t, mw.RequireAuthenticated, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireStaff(t *testing.T) {
	mw := Middleware{Service: NewService(&stubSource{})}

	rr := serveWith(t, mw.RequireStaff, stubPrincipal{id: 1, active: true, staff: true})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serveWith(t, mw.RequireStaff, stubPrincipal{id: 1, active: true})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

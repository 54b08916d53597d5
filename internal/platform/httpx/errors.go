package httpx

import (
	"errors"
	"net/http"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// RespondError maps domain errors onto HTTP status codes and the response
// envelope. Unexpected errors surface as a generic 500 without leaking
// internal detail.
func RespondError(w http.ResponseWriter, err error) {
	if ve, ok := shared.AsValidationError(err); ok {
		Error(w, http.StatusBadRequest, "Validation failed", ve.Fields)
		return
	}
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, "Resource not found", nil)
	case errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, shared.ErrUnauthenticated):
		Error(w, http.StatusUnauthorized, "Authentication required", nil)
	case errors.Is(err, shared.ErrInsufficientPermission):
		Error(w, http.StatusForbidden, "Permission denied", nil)
	case errors.Is(err, shared.ErrProtectedAccount):
		Error(w, http.StatusForbidden, "Superuser accounts cannot be modified", nil)
	case errors.Is(err, shared.ErrAccountInactive):
		Error(w, http.StatusForbidden, "Account is inactive", nil)
	case errors.Is(err, shared.ErrDuplicateEmail):
		Error(w, http.StatusBadRequest, "Email already in use", map[string]string{"email": "already in use"})
	case errors.Is(err, shared.ErrDuplicateUsername):
		Error(w, http.StatusBadRequest, "Username already in use", map[string]string{"username": "already in use"})
	case errors.Is(err, shared.ErrDuplicateGroupName):
		Error(w, http.StatusBadRequest, "Group name already in use", map[string]string{"name": "already in use"})
	case errors.Is(err, shared.ErrNoOpStateChange):
		Error(w, http.StatusBadRequest, err.Error(), nil)
	default:
		Error(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

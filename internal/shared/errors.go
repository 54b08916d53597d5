package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates the request carries no valid identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInsufficientPermission indicates the caller lacks the required capability.
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrProtectedAccount indicates the target is a superuser account.
	ErrProtectedAccount = errors.New("superuser accounts cannot be modified")
	// ErrAccountInactive indicates the caller account is deactivated or deleted.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrDuplicateEmail indicates the email is already taken.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already in use")
	// ErrDuplicateGroupName indicates the group name is already taken.
	ErrDuplicateGroupName = errors.New("group name already in use")
	// ErrNoOpStateChange indicates the record is already in the requested state.
	ErrNoOpStateChange = errors.New("record already in requested state")
)

// ValidationError carries field level validation failures.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

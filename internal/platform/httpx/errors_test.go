package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

func respond(t *testing.T, err error) (int, Envelope) {
	t.Helper()
	rr := httptest.NewRecorder()
	RespondError(rr, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr.Code, env
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"not found":               {shared.ErrNotFound, 404},
		"invalid credentials":     {shared.ErrInvalidCredentials, 401},
		"unauthenticated":         {shared.ErrUnauthenticated, 401},
		"insufficient permission": {shared.ErrInsufficientPermission, 403},
		"protected account":       {shared.ErrProtectedAccount, 403},
		"inactive account":        {shared.ErrAccountInactive, 403},
		"duplicate email":         {shared.ErrDuplicateEmail, 400},
		"duplicate username":      {shared.ErrDuplicateUsername, 400},
		"duplicate group name":    {shared.ErrDuplicateGroupName, 400},
		"unknown error":           {errors.New("pg down"), 500},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			status, env := respond(t, tc.err)
			assert.Equal(t, tc.status, status)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	_, env := respond(t, errors.New("dial tcp 10.0.0.3:5432: connect refused"))
	assert.Equal(t, "Internal server error", env.Message)
}

func TestRespondErrorValidationFields(t *testing.T) {
	status, env := respond(t, shared.NewValidationError("group_ids", "unknown group ids: 42"))
	assert.Equal(t, 400, status)
	fields, ok := env.Errors.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unknown group ids: 42", fields["group_ids"])
}

func TestRespondErrorNoOpKeepsMessage(t *testing.T) {
	status, env := respond(t, fmt.Errorf("%w: user is already active", shared.ErrNoOpStateChange))
	assert.Equal(t, 400, status)
	assert.Contains(t, env.Message, "already active")
}

func TestSuccessEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Success(rr, 201, "Created", map[string]int{"id": 7})

	assert.Equal(t, 201, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "Created", env.Message)
}

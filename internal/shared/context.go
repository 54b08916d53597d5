package shared

import "context"

// Principal describes the authenticated actor attached to a request.
type Principal interface {
	GetID() int64
	GetUsername() string
	Active() bool
	Staff() bool
	SuperUser() bool
}

type identityContextKey struct{}

// ContextWithIdentity stores the authenticated principal in context.
func ContextWithIdentity(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, identityContextKey{}, p)
}

// IdentityFromContext extracts the authenticated principal from context.
// Returns nil for anonymous requests.
func IdentityFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(identityContextKey{}).(Principal)
	return p
}

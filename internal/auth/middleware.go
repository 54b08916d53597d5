package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/httpx"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Authenticator validates bearer tokens and attaches the identity to the
// request context. The identity is always loaded fresh from the store, not
// reconstructed from claims, so authorization decisions never run against
// stale flags.
type Authenticator struct {
	tokens TokenService
	store  IdentityStore
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens TokenService, store IdentityStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{tokens: tokens, store: store, logger: logger}
}

// Middleware resolves the Authorization header. Requests without a bearer
// token pass through anonymously; requests with an invalid or orphaned
// token are rejected outright.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "Invalid authorization header", nil)
			return
		}

		claims, err := a.tokens.Validate(token)
		if err != nil || claims.TokenType != TokenTypeAccess {
			httpx.Error(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}

		user, err := a.store.FindByID(r.Context(), claims.UserID)
		if err != nil {
			httpx.Error(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := shared.ContextWithIdentity(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

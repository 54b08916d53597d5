package auth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
	"github.com/afnan2013/forewarn-ibf-portal/internal/users"
)

// IdentityStore is the subset of the user repository needed for session
// establishment.
type IdentityStore interface {
	FindByID(ctx context.Context, id int64) (*users.Identity, error)
	FindByIdentifier(ctx context.Context, identifier string) (*users.Identity, error)
	GroupsFor(ctx context.Context, id int64) ([]users.GroupRef, error)
	SetLastLogin(ctx context.Context, id int64, at time.Time) error
}

// PermissionSource resolves the effective permission set for the login
// snapshot.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]shared.Capability, error)
}

// Service wraps session establishment rules.
type Service struct {
	store   IdentityStore
	perms   PermissionSource
	tokens  TokenService
	refresh *RefreshStore
	logger  *slog.Logger
}

// NewService constructs a new Service.
func NewService(store IdentityStore, perms PermissionSource, tokens TokenService, refresh *RefreshStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, perms: perms, tokens: tokens, refresh: refresh, logger: logger}
}

// Login validates credentials and issues a token pair. Unknown identity,
// wrong password and inactive account are indistinguishable to the caller
// so accounts cannot be enumerated.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	user, err := s.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("set last login", slog.Any("error", err))
	}
	return result, nil
}

// Refresh exchanges a valid refresh token for a new token pair, rotating
// the stored refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.Validate(refreshToken)
	if err != nil || claims.TokenType != TokenTypeRefresh {
		return nil, shared.ErrInvalidCredentials
	}
	if s.refresh != nil {
		ok, err := s.refresh.Matches(ctx, claims.UserID, refreshToken)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrInvalidCredentials
		}
	}
	user, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, shared.ErrInvalidCredentials
	}
	return s.issueTokens(ctx, user)
}

// Logout drops the stored refresh token. Issued access tokens keep their
// natural expiry; there is no server-side revocation list.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	if s.refresh == nil {
		return nil
	}
	return s.refresh.Delete(ctx, userID)
}

func (s *Service) issueTokens(ctx context.Context, user *users.Identity) (*LoginResult, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	if s.refresh != nil {
		if err := s.refresh.Save(ctx, user.ID, refresh, s.tokens.RefreshTTL()); err != nil {
			return nil, err
		}
	}

	groups, err := s.store.GroupsFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	groupNames := make([]string, 0, len(groups))
	for _, g := range groups {
		groupNames = append(groupNames, g.Name)
	}
	perms, err := s.perms.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []shared.Capability{}
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		User: IdentitySummary{
			ID:          user.ID,
			Email:       user.Email,
			Username:    user.Username,
			FullName:    user.FullName(),
			IsStaff:     user.IsStaff,
			Groups:      groupNames,
			Permissions: perms,
		},
	}, nil
}

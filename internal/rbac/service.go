package rbac

import (
	"context"
	"sort"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Service is the authorization engine. It decides ALLOW/DENY for a given
// principal and required capability by composing authentication presence,
// account state, and the effective permission set.
type Service struct {
	source PermissionSource
}

// NewService constructs a Service backed by the given permission source.
func NewService(source PermissionSource) *Service {
	return &Service{source: source}
}

// EffectivePermissions returns the deduplicated capability set of an
// identity: the union of group-derived permissions and attached-role
// capability flags. Codes outside the closed capability catalog are
// dropped.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]shared.Capability, error) {
	groupCodes, err := s.source.GroupPermissionCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	roleCodes, err := s.source.RoleCapabilityCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := make(map[shared.Capability]struct{}, len(groupCodes)+len(roleCodes))
	for _, code := range append(groupCodes, roleCodes...) {
		if c, ok := shared.ParseCapability(code); ok {
			set[c] = struct{}{}
		}
	}

	caps := make([]shared.Capability, 0, len(set))
	for c := range set {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps, nil
}

// Authorize decides whether the principal may perform an action requiring
// the given capability. A nil principal is an unauthenticated request.
func (s *Service) Authorize(ctx context.Context, p shared.Principal, required shared.Capability) error {
	if p == nil {
		return shared.ErrUnauthenticated
	}
	if !p.Active() {
		return shared.ErrAccountInactive
	}
	granted, err := s.EffectivePermissions(ctx, p.GetID())
	if err != nil {
		return err
	}
	for _, c := range granted {
		if c == required {
			return nil
		}
	}
	return shared.ErrInsufficientPermission
}

// AuthorizeSelf covers self-service operations: the capability check is
// skipped but the account must still be authenticated and active.
func (s *Service) AuthorizeSelf(p shared.Principal) error {
	if p == nil {
		return shared.ErrUnauthenticated
	}
	if !p.Active() {
		return shared.ErrAccountInactive
	}
	return nil
}

// ListPermissions exposes the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.source.ListPermissions(ctx)
}

package roles

import (
	"context"
	"strings"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get fetches a role by id.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and inserts a new role. Capability keys outside the
// closed catalog are rejected.
func (s *Service) Create(ctx context.Context, role Role) (*Role, error) {
	if err := validate(&role); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, role)
}

// Update validates and persists role changes.
func (s *Service) Update(ctx context.Context, role Role) (*Role, error) {
	if err := validate(&role); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, role)
}

// Delete removes a role.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Assign attaches a role to an identity; a nil roleID detaches it.
func (s *Service) Assign(ctx context.Context, userID int64, roleID *int64) error {
	if roleID != nil {
		if _, err := s.repo.Get(ctx, *roleID); err != nil {
			return err
		}
	}
	return s.repo.AssignToUser(ctx, userID, roleID)
}

func validate(role *Role) error {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return shared.NewValidationError("name", "required")
	}
	if role.Level < 0 {
		return shared.NewValidationError("level", "must be a non-negative integer")
	}
	for code := range role.Capabilities {
		if _, ok := shared.ParseCapability(code); !ok {
			return shared.NewValidationError("capabilities", "unknown capability: "+code)
		}
	}
	if role.Capabilities == nil {
		role.Capabilities = map[string]bool{}
	}
	return nil
}

package groups

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Service orchestrates group management. Mutations touching both the group
// row and its permission grants run inside one transaction.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns all groups.
func (s *Service) List(ctx context.Context) ([]Group, error) {
	return s.repo.List(ctx)
}

// Get returns a group with its permissions and member count.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := s.repo.PermissionsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.MemberCount(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Group: *group, Permissions: perms, MemberCount: members}, nil
}

// Create inserts a new group with optional permission grants.
func (s *Service) Create(ctx context.Context, actorID int64, name string, permissionIDs []int64) (*Detail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("name", "required")
	}

	var detail *Detail
	err := s.repo.InTx(ctx, func(repo Repository) error {
		if taken, err := repo.NameTaken(ctx, name, 0); err != nil {
			return err
		} else if taken {
			return shared.ErrDuplicateGroupName
		}
		if err := s.checkPermissionIDs(ctx, repo, permissionIDs); err != nil {
			return err
		}
		group, err := repo.Create(ctx, name)
		if err != nil {
			return err
		}
		if len(permissionIDs) > 0 {
			if err := repo.ReplacePermissions(ctx, group.ID, permissionIDs); err != nil {
				return err
			}
		}
		perms, err := repo.PermissionsFor(ctx, group.ID)
		if err != nil {
			return err
		}
		detail = &Detail{Group: *group, Permissions: perms}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "group.create", detail.ID, map[string]any{"name": detail.Name})
	return detail, nil
}

// Update renames the group and/or replaces its permission grants.
func (s *Service) Update(ctx context.Context, actorID, id int64, name *string, permissionIDs *[]int64) (*Detail, error) {
	var detail *Detail
	err := s.repo.InTx(ctx, func(repo Repository) error {
		group, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if name != nil {
			newName := strings.TrimSpace(*name)
			if newName == "" {
				return shared.NewValidationError("name", "required")
			}
			if taken, err := repo.NameTaken(ctx, newName, id); err != nil {
				return err
			} else if taken {
				return shared.ErrDuplicateGroupName
			}
			if err := repo.Rename(ctx, id, newName); err != nil {
				return err
			}
			group.Name = newName
		}
		if permissionIDs != nil {
			if err := s.checkPermissionIDs(ctx, repo, *permissionIDs); err != nil {
				return err
			}
			if err := repo.ReplacePermissions(ctx, id, *permissionIDs); err != nil {
				return err
			}
		}
		perms, err := repo.PermissionsFor(ctx, id)
		if err != nil {
			return err
		}
		members, err := repo.MemberCount(ctx, id)
		if err != nil {
			return err
		}
		detail = &Detail{Group: *group, Permissions: perms, MemberCount: members}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "group.update", id, nil)
	return detail, nil
}

// Delete removes the group and returns its pre-deletion snapshot. Members
// lose the group without being deleted themselves.
func (s *Service) Delete(ctx context.Context, actorID, id int64) (*Snapshot, error) {
	var snapshot *Snapshot
	err := s.repo.InTx(ctx, func(repo Repository) error {
		group, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		perms, err := repo.PermissionsFor(ctx, id)
		if err != nil {
			return err
		}
		members, err := repo.MemberCount(ctx, id)
		if err != nil {
			return err
		}
		snapshot = &Snapshot{
			ID:              group.ID,
			Name:            group.Name,
			PermissionCount: len(perms),
			MemberCount:     members,
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "group.delete", id, map[string]any{"name": snapshot.Name, "members": snapshot.MemberCount})
	return snapshot, nil
}

func (s *Service) checkPermissionIDs(ctx context.Context, repo Repository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	valid, err := repo.ValidPermissionIDs(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[int64]struct{}, len(valid))
	for _, id := range valid {
		known[id] = struct{}{}
	}
	var unknown []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, strconv.FormatInt(id, 10))
		}
	}
	if len(unknown) > 0 {
		return shared.NewValidationError("permission_ids", "unknown permission ids: "+strings.Join(unknown, ", "))
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actorID, Action: action, Entity: "group", EntityID: strconv.FormatInt(entityID, 10), Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
	}
}

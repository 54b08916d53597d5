package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/afnan2013/forewarn-ibf-portal/internal/rbac"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Mailer enqueues transactional email notifications. Implementations must
// not block on delivery.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Service is the account lifecycle manager. Every mutation runs inside a
// single transaction and re-reads the target row within that transaction
// before applying the superuser guard.
type Service struct {
	repo       Repository
	audit      *shared.AuditLogger
	mailer     Mailer
	logger     *slog.Logger
	bcryptCost int
}

// NewService constructs a Service. audit and mailer may be nil.
func NewService(repo Repository, audit *shared.AuditLogger, mailer Mailer, logger *slog.Logger, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, mailer: mailer, logger: logger, bcryptCost: bcryptCost}
}

// RegisterInput carries the fields required to create an identity.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	GroupIDs  []int64
}

// ProfileUpdate carries optional profile field updates. Absent fields are
// left untouched. Staff and superuser flags are not reachable through this
// type on purpose.
type ProfileUpdate struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
}

// AdminUpdateInput extends ProfileUpdate with optional group replacement.
type AdminUpdateInput struct {
	ProfileUpdate
	GroupIDs *[]int64
}

// Register creates a new identity with the given group memberships.
func (s *Service) Register(ctx context.Context, actorID int64, in RegisterInput) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}

	user := &Identity{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		PasswordHash: string(hash),
	}

	err = s.repo.InTx(ctx, func(repo Repository) error {
		if taken, err := repo.EmailTaken(ctx, in.Email, 0); err != nil {
			return err
		} else if taken {
			return shared.ErrDuplicateEmail
		}
		if taken, err := repo.UsernameTaken(ctx, in.Username, 0); err != nil {
			return err
		} else if taken {
			return shared.ErrDuplicateUsername
		}
		if err := s.checkGroupIDs(ctx, repo, in.GroupIDs); err != nil {
			return err
		}
		if err := repo.Create(ctx, user); err != nil {
			return err
		}
		if len(in.GroupIDs) > 0 {
			if err := repo.ReplaceGroups(ctx, user.ID, in.GroupIDs); err != nil {
				return err
			}
		}
		groups, err := repo.GroupsFor(ctx, user.ID)
		if err != nil {
			return err
		}
		user.Groups = groups
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, "user.register", user.ID, map[string]any{"email": user.Email})
	if s.mailer != nil {
		if err := s.mailer.SendEmail(ctx, user.Email, "Welcome to the portal", "Your account has been created."); err != nil {
			s.logger.Warn("enqueue welcome email", slog.Any("error", err))
		}
	}
	return user, nil
}

// Get fetches an identity with its group memberships.
func (s *Service) Get(ctx context.Context, id int64) (*Identity, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.GroupsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Groups = groups
	return user, nil
}

// List returns a page of identities plus the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Identity, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.List(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	for i := range list {
		groups, err := s.repo.GroupsFor(ctx, list[i].ID)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		list[i].Groups = groups
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// UpdateProfile applies a self-service profile update for the caller.
func (s *Service) UpdateProfile(ctx context.Context, callerID int64, in ProfileUpdate) (*Identity, error) {
	var updated *Identity
	err := s.repo.InTx(ctx, func(repo Repository) error {
		user, err := repo.FindByID(ctx, callerID)
		if err != nil {
			return err
		}
		if err := s.applyProfileUpdate(ctx, repo, user, in); err != nil {
			return err
		}
		user.Groups, err = repo.GroupsFor(ctx, user.ID)
		if err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateByAdmin applies an administrative update to the target identity,
// optionally replacing its group memberships. Superuser targets are
// rejected.
func (s *Service) UpdateByAdmin(ctx context.Context, actorID, targetID int64, in AdminUpdateInput) (*Identity, error) {
	var updated *Identity
	err := s.repo.InTx(ctx, func(repo Repository) error {
		target, err := repo.FindByID(ctx, targetID)
		if err != nil {
			return err
		}
		if err := rbac.EnsureMutableTarget(target); err != nil {
			return err
		}
		if err := s.applyProfileUpdate(ctx, repo, target, in.ProfileUpdate); err != nil {
			return err
		}
		if in.GroupIDs != nil {
			if err := s.checkGroupIDs(ctx, repo, *in.GroupIDs); err != nil {
				return err
			}
			if err := repo.ReplaceGroups(ctx, target.ID, *in.GroupIDs); err != nil {
				return err
			}
		}
		target.Groups, err = repo.GroupsFor(ctx, target.ID)
		if err != nil {
			return err
		}
		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "user.update", targetID, nil)
	return updated, nil
}

// Delete hard-removes the target identity. Superuser targets are rejected.
func (s *Service) Delete(ctx context.Context, actorID, targetID int64) error {
	err := s.repo.InTx(ctx, func(repo Repository) error {
		target, err := repo.FindByID(ctx, targetID)
		if err != nil {
			return err
		}
		if err := rbac.EnsureMutableTarget(target); err != nil {
			return err
		}
		return repo.Delete(ctx, targetID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "user.delete", targetID, nil)
	return nil
}

// SetActive activates or deactivates the target identity. Setting the flag
// to its current value fails with ErrNoOpStateChange.
func (s *Service) SetActive(ctx context.Context, actorID, targetID int64, desired bool) error {
	err := s.repo.InTx(ctx, func(repo Repository) error {
		target, err := repo.FindByID(ctx, targetID)
		if err != nil {
			return err
		}
		if err := rbac.EnsureMutableTarget(target); err != nil {
			return err
		}
		if target.IsActive == desired {
			if desired {
				return fmt.Errorf("%w: user is already active", shared.ErrNoOpStateChange)
			}
			return fmt.Errorf("%w: user is already inactive", shared.ErrNoOpStateChange)
		}
		return repo.SetActive(ctx, targetID, desired)
	})
	if err != nil {
		return err
	}
	action := "user.deactivate"
	if desired {
		action = "user.activate"
	}
	s.recordAudit(ctx, actorID, action, targetID, nil)
	return nil
}

// ChangePasswordByAdmin resets the target identity's password without the
// old one. Superuser targets are rejected.
func (s *Service) ChangePasswordByAdmin(ctx context.Context, actorID, targetID int64, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	var email string
	err = s.repo.InTx(ctx, func(repo Repository) error {
		target, err := repo.FindByID(ctx, targetID)
		if err != nil {
			return err
		}
		if err := rbac.EnsureMutableTarget(target); err != nil {
			return err
		}
		email = target.Email
		return repo.SetPassword(ctx, targetID, string(hash))
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "user.change_password", targetID, nil)
	if s.mailer != nil {
		if err := s.mailer.SendEmail(ctx, email, "Your password was changed", "An administrator changed your account password."); err != nil {
			s.logger.Warn("enqueue password change email", slog.Any("error", err))
		}
	}
	return nil
}

// ChangeOwnPassword changes the caller's password after verifying the
// current one. Superusers may change their own password through this path.
func (s *Service) ChangeOwnPassword(ctx context.Context, callerID int64, oldPassword, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.InTx(ctx, func(repo Repository) error {
		caller, err := repo.FindByID(ctx, callerID)
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(caller.PasswordHash), []byte(oldPassword)); err != nil {
			return shared.ErrInvalidCredentials
		}
		return repo.SetPassword(ctx, callerID, string(hash))
	})
}

func (s *Service) applyProfileUpdate(ctx context.Context, repo Repository, user *Identity, in ProfileUpdate) error {
	if in.Email != nil {
		if taken, err := repo.EmailTaken(ctx, *in.Email, user.ID); err != nil {
			return err
		} else if taken {
			return shared.ErrDuplicateEmail
		}
		user.Email = *in.Email
	}
	if in.Username != nil {
		if taken, err := repo.UsernameTaken(ctx, *in.Username, user.ID); err != nil {
			return err
		} else if taken {
			return shared.ErrDuplicateUsername
		}
		user.Username = *in.Username
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	return repo.Update(ctx, user)
}

// checkGroupIDs fails with a validation error listing unknown group ids.
func (s *Service) checkGroupIDs(ctx context.Context, repo Repository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	valid, err := repo.ValidGroupIDs(ctx, ids)
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
		return shared.NewValidationError("group_ids", "unknown group ids: "+strings.Join(unknown, ", "))
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: strconv.FormatInt(entityID, 10), Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
	}
}

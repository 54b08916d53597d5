package groups

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/db"
	"github.com/afnan2013/forewarn-ibf-portal/internal/rbac"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Repository defines persistence operations for groups.
type Repository interface {
	InTx(ctx context.Context, fn func(Repository) error) error

	List(ctx context.Context) ([]Group, error)
	FindByID(ctx context.Context, id int64) (*Group, error)
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)

	Create(ctx context.Context, name string) (*Group, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error

	ReplacePermissions(ctx context.Context, id int64, permissionIDs []int64) error
	PermissionsFor(ctx context.Context, id int64) ([]rbac.Permission, error)
	ValidPermissionIDs(ctx context.Context, ids []int64) ([]int64, error)
	MemberCount(ctx context.Context, id int64) (int, error)
	CountGroups(ctx context.Context) (int, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, q: pool}
}

// InTx runs fn against a transaction-scoped copy of the repository.
func (r *PGRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PGRepository{q: tx})
	})
}

// List returns all groups ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Group, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, created_at, updated_at FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// FindByID fetches a group by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Group, error) {
	var g Group
	err := r.q.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// NameTaken reports whether another group already uses name.
func (r *PGRepository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM groups WHERE lower(name) = lower($1) AND id <> $2)`, name, excludeID).Scan(&taken)
	return taken, err
}

// Create inserts a new group.
func (r *PGRepository) Create(ctx context.Context, name string) (*Group, error) {
	var g Group
	err := r.q.QueryRow(ctx, `INSERT INTO groups (name) VALUES ($1) RETURNING id, name, created_at, updated_at`, name).
		Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, translateUniqueViolation(err)
	}
	return &g, nil
}

// Rename updates the group name.
func (r *PGRepository) Rename(ctx context.Context, id int64, name string) error {
	tag, err := r.q.Exec(ctx, `UPDATE groups SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
	if err != nil {
		return translateUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the group. Membership and grant rows go via foreign key
// cascade; member identities are untouched.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplacePermissions swaps the group's permission grants for the given set.
func (r *PGRepository) ReplacePermissions(ctx context.Context, id int64, permissionIDs []int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM group_permissions WHERE group_id = $1`, id); err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		if _, err := r.q.Exec(ctx, `INSERT INTO group_permissions (group_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, pid); err != nil {
			return err
		}
	}
	return nil
}

// PermissionsFor lists the permissions granted to the group.
func (r *PGRepository) PermissionsFor(ctx context.Context, id int64) ([]rbac.Permission, error) {
	rows, err := r.q.Query(ctx, `
		SELECT p.id, p.code, p.label
		FROM permissions p
		JOIN group_permissions gp ON gp.permission_id = p.id
		WHERE gp.group_id = $1
		ORDER BY p.code`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []rbac.Permission{}
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Label); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ValidPermissionIDs returns the subset of ids that exist as permissions.
func (r *PGRepository) ValidPermissionIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `SELECT id FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var valid []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		valid = append(valid, id)
	}
	return valid, rows.Err()
}

// MemberCount returns how many identities belong to the group.
func (r *PGRepository) MemberCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM user_groups WHERE group_id = $1`, id).Scan(&count)
	return count, err
}

// CountGroups returns the total number of groups.
func (r *PGRepository) CountGroups(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM groups`).Scan(&count)
	return count, err
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "name") {
		return shared.ErrDuplicateGroupName
	}
	return err
}

var _ Repository = (*PGRepository)(nil)

package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PermissionSource provides the raw permission signals an identity holds.
type PermissionSource interface {
	GroupPermissionCodes(ctx context.Context, userID int64) ([]string, error)
	RoleCapabilityCodes(ctx context.Context, userID int64) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// PGRepository implements PermissionSource using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GroupPermissionCodes returns the permission codes granted through group
// membership.
func (r *PGRepository) GroupPermissionCodes(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.code
		FROM permissions p
		JOIN group_permissions gp ON gp.permission_id = p.id
		JOIN user_groups ug ON ug.group_id = gp.group_id
		WHERE ug.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// RoleCapabilityCodes returns capability codes enabled on the identity's
// attached role, if any.
func (r *PGRepository) RoleCapabilityCodes(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.key
		FROM users u
		JOIN roles ro ON ro.id = u.role_id,
		LATERAL jsonb_each(ro.capabilities) AS c(key, value)
		WHERE u.id = $1 AND c.value = 'true'::jsonb`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// ListPermissions returns the full permission catalog ordered by code.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, label FROM permissions ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Label); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

var _ PermissionSource = (*PGRepository)(nil)

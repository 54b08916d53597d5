package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (*Role, error)
	Create(ctx context.Context, role Role) (*Role, error)
	Update(ctx context.Context, role Role) (*Role, error)
	Delete(ctx context.Context, id int64) error
	AssignToUser(ctx context.Context, userID int64, roleID *int64) error
}

// Repository provides PostgreSQL backed persistence. Capabilities are
// stored as a JSONB map of capability code to flag.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, level, capabilities, created_at, updated_at`

// List returns all roles ordered by level descending then name.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY level DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Level, &role.Capabilities, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Get fetches a role by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.Level, &role.Capabilities, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// Create inserts a new role.
func (r *Repository) Create(ctx context.Context, role Role) (*Role, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, level, capabilities) VALUES ($1, $2, $3, $4) RETURNING `+roleColumns,
		role.Name, role.Description, role.Level, role.Capabilities,
	).Scan(&role.ID, &role.Name, &role.Description, &role.Level, &role.Capabilities, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, translateUniqueViolation(err)
	}
	return &role, nil
}

// Update persists role changes.
func (r *Repository) Update(ctx context.Context, role Role) (*Role, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, level = $4, capabilities = $5, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.Level, role.Capabilities,
	).Scan(&role.ID, &role.Name, &role.Description, &role.Level, &role.Capabilities, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, translateUniqueViolation(err)
	}
	return &role, nil
}

// Delete removes a role. Identities referencing it fall back to having no
// role via ON DELETE SET NULL.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignToUser attaches (or with nil detaches) a role on an identity.
func (r *Repository) AssignToUser(ctx context.Context, userID int64, roleID *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)

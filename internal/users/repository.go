package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/db"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Repository defines persistence operations for identities. InTx yields a
// repository bound to a single transaction so multi-step mutations stay
// atomic.
type Repository interface {
	InTx(ctx context.Context, fn func(Repository) error) error

	FindByID(ctx context.Context, id int64) (*Identity, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Identity, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)

	Create(ctx context.Context, u *Identity) error
	Update(ctx context.Context, u *Identity) error
	Delete(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetPassword(ctx context.Context, id int64, hash string) error
	SetLastLogin(ctx context.Context, id int64, at time.Time) error

	ReplaceGroups(ctx context.Context, id int64, groupIDs []int64) error
	GroupsFor(ctx context.Context, id int64) ([]GroupRef, error)
	ValidGroupIDs(ctx context.Context, ids []int64) ([]int64, error)

	List(ctx context.Context, limit, offset int) ([]Identity, int, error)
	CountUsers(ctx context.Context) (total, active int, err error)
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
		// Already inside a transaction, reuse it.
		return fn(r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PGRepository{q: tx})
	})
}

const identityColumns = `id, email, username, first_name, last_name, is_active, is_staff, is_superuser, is_deleted, password_hash, role_id, date_joined, last_login`

func scanIdentity(row pgx.Row) (*Identity, error) {
	var u Identity
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.IsDeleted, &u.PasswordHash, &u.RoleID, &u.DateJoined, &u.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByID fetches a non-deleted identity by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Identity, error) {
	row := r.q.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1 AND is_deleted = FALSE`, id)
	return scanIdentity(row)
}

// FindByIdentifier fetches a non-deleted identity by email or username.
func (r *PGRepository) FindByIdentifier(ctx context.Context, identifier string) (*Identity, error) {
	identifier = strings.TrimSpace(identifier)
	row := r.q.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE (lower(email) = lower($1) OR username = $1) AND is_deleted = FALSE`, identifier)
	return scanIdentity(row)
}

// EmailTaken reports whether another non-deleted identity already uses email.
func (r *PGRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2 AND is_deleted = FALSE)`, email, excludeID).Scan(&taken)
	return taken, err
}

// UsernameTaken reports whether another non-deleted identity already uses username.
func (r *PGRepository) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 AND id <> $2 AND is_deleted = FALSE)`, username, excludeID).Scan(&taken)
	return taken, err
}

// Create inserts a new identity and fills in its generated id and join date.
func (r *PGRepository) Create(ctx context.Context, u *Identity) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO users (email, username, first_name, last_name, is_active, is_staff, is_superuser, is_deleted, password_hash, role_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9)
		 RETURNING id, date_joined`,
		u.Email, u.Username, u.FirstName, u.LastName, u.IsActive, u.IsStaff, u.IsSuperuser, u.PasswordHash, u.RoleID,
	).Scan(&u.ID, &u.DateJoined)
	return translateUniqueViolation(err)
}

// Update persists the mutable profile fields of an identity. Staff and
// superuser flags are deliberately not part of this statement.
func (r *PGRepository) Update(ctx context.Context, u *Identity) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET email = $2, username = $3, first_name = $4, last_name = $5, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`,
		u.ID, u.Email, u.Username, u.FirstName, u.LastName,
	)
	if err != nil {
		return translateUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the identity row. Group membership rows go with it via
// foreign key cascade; groups themselves are untouched.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive flips the active flag.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetPassword stores a new password hash.
func (r *PGRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetLastLogin records a successful login timestamp.
func (r *PGRepository) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

// ReplaceGroups swaps the identity's group memberships for the given set.
func (r *PGRepository) ReplaceGroups(ctx context.Context, id int64, groupIDs []int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM user_groups WHERE user_id = $1`, id); err != nil {
		return err
	}
	for _, gid := range groupIDs {
		if _, err := r.q.Exec(ctx, `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, gid); err != nil {
			return err
		}
	}
	return nil
}

// GroupsFor lists the groups the identity belongs to.
func (r *PGRepository) GroupsFor(ctx context.Context, id int64) ([]GroupRef, error) {
	rows, err := r.q.Query(ctx, `SELECT g.id, g.name FROM groups g JOIN user_groups ug ON ug.group_id = g.id WHERE ug.user_id = $1 ORDER BY g.name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	groups := []GroupRef{}
	for rows.Next() {
		var g GroupRef
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ValidGroupIDs returns the subset of ids that exist as groups.
func (r *PGRepository) ValidGroupIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `SELECT id FROM groups WHERE id = ANY($1)`, ids)
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

// List returns a page of non-deleted identities plus the total count.
func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]Identity, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_deleted = FALSE`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `SELECT `+identityColumns+` FROM users WHERE is_deleted = FALSE ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Identity
	for rows.Next() {
		var u Identity
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.IsDeleted, &u.PasswordHash, &u.RoleID, &u.DateJoined, &u.LastLogin); err != nil {
			return nil, 0, err
		}
		list = append(list, u)
	}
	return list, total, rows.Err()
}

// CountUsers returns total and active non-deleted identity counts.
func (r *PGRepository) CountUsers(ctx context.Context) (int, int, error) {
	var total, active int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users WHERE is_deleted = FALSE`).Scan(&total, &active)
	return total, active, err
}

// translateUniqueViolation turns unique constraint failures into the
// corresponding duplicate errors. Pre-checks run first, this is the
// backstop against concurrent writers.
func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return shared.ErrDuplicateEmail
		case strings.Contains(pgErr.ConstraintName, "username"):
			return shared.ErrDuplicateUsername
		}
	}
	return err
}

var _ Repository = (*PGRepository)(nil)

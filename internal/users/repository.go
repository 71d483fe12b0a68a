package users

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
)

// Repository opens units of work over the user store.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id int64, c Changes, at time.Time) (User, error)
	Delete(ctx context.Context, id int64) (int64, error)
	DeleteMany(ctx context.Context, ids []int64) (int64, error)

	RoleIDs(ctx context.Context, userID int64) ([]int64, error)
	SyncRoles(ctx context.Context, userID int64, roleIDs []int64) error
	RoleCatalog(ctx context.Context) ([]associations.Record, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool  *pgxpool.Pool
	assoc *associations.Manager
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, assoc *associations.Manager) *PGRepository {
	return &PGRepository{pool: pool, assoc: assoc}
}

// WithTx wraps callback in repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, assoc: r.assoc})
	})
}

type txRepo struct {
	tx    pgx.Tx
	assoc *associations.Manager
}

const userColumns = `id, name, email, password, email_verified_at, created_at, updated_at`

func (t *txRepo) List(ctx context.Context) ([]User, error) {
	var out []User
	if err := pgxscan.Select(ctx, t.tx, &out, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

func (t *txRepo) Get(ctx context.Context, id int64) (User, error) {
	var u User
	if err := pgxscan.Get(ctx, t.tx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		if pgxscan.NotFound(err) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return u, nil
}

func (t *txRepo) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE name = $1 AND id <> $2)`, name, excludeID)
}

func (t *txRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID)
}

func (t *txRepo) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("users: uniqueness check: %w", err)
	}
	return found, nil
}

func (t *txRepo) Create(ctx context.Context, u User) (User, error) {
	var out User
	err := pgxscan.Get(ctx, t.tx, &out, `
INSERT INTO users (name, email, password, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING `+userColumns, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if uerr := uniqueError(err); uerr != nil {
			return User{}, uerr
		}
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return out, nil
}

func (t *txRepo) Update(ctx context.Context, id int64, c Changes, at time.Time) (User, error) {
	var out User
	err := pgxscan.Get(ctx, t.tx, &out, `
UPDATE users
SET name = $2, email = $3, password = COALESCE($4, password), updated_at = $5
WHERE id = $1
RETURNING `+userColumns, id, c.Name, c.Email, c.PasswordHash, at)
	if err != nil {
		if pgxscan.NotFound(err) {
			return User{}, ErrNotFound
		}
		if uerr := uniqueError(err); uerr != nil {
			return User{}, uerr
		}
		return User{}, fmt.Errorf("users: update: %w", err)
	}
	return out, nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("users: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("users: delete many: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) RoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	return t.assoc.RelatedIDs(ctx, t.tx, associations.UserRoles, userID)
}

func (t *txRepo) SyncRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return t.assoc.Sync(ctx, t.tx, associations.UserRoles, userID, roleIDs)
}

func (t *txRepo) RoleCatalog(ctx context.Context) ([]associations.Record, error) {
	return t.assoc.Catalog(ctx, t.tx, associations.UserRoles)
}

// uniqueError maps a unique violation to the field it concerns, or nil.
func uniqueError(err error) error {
	constraint, ok := db.UniqueViolation(err)
	if !ok {
		return nil
	}
	if constraint == constraintEmail {
		return emailTaken()
	}
	return nameTaken()
}

var _ Repository = (*PGRepository)(nil)

package roles

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

// Repository opens units of work over the role store.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, name string, at time.Time) (Role, error)
	Update(ctx context.Context, id int64, name string, at time.Time) (Role, error)
	Delete(ctx context.Context, id int64) (int64, error)
	DeleteMany(ctx context.Context, ids []int64) (int64, error)

	PermissionIDs(ctx context.Context, id int64) ([]int64, error)
	SyncPermissions(ctx context.Context, id int64, permissionIDs []int64) error
	PermissionCatalog(ctx context.Context) ([]associations.Record, error)
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

// WithTx wraps fn in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, assoc: r.assoc})
	})
}

type txRepo struct {
	tx    pgx.Tx
	assoc *associations.Manager
}

const roleColumns = `id, name, created_at, updated_at`

func (t *txRepo) List(ctx context.Context) ([]Role, error) {
	var out []Role
	if err := pgxscan.Select(ctx, t.tx, &out, `SELECT `+roleColumns+` FROM roles ORDER BY id`); err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return out, nil
}

func (t *txRepo) Get(ctx context.Context, id int64) (Role, error) {
	var role Role
	if err := pgxscan.Get(ctx, t.tx, &role, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id); err != nil {
		if pgxscan.NotFound(err) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

func (t *txRepo) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1 AND id <> $2)`, name, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("roles: name taken: %w", err)
	}
	return taken, nil
}

func (t *txRepo) Create(ctx context.Context, name string, at time.Time) (Role, error) {
	var role Role
	err := pgxscan.Get(ctx, t.tx, &role, `
INSERT INTO roles (name, created_at, updated_at) VALUES ($1, $2, $2)
RETURNING `+roleColumns, name, at)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return Role{}, nameTaken()
		}
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return role, nil
}

func (t *txRepo) Update(ctx context.Context, id int64, name string, at time.Time) (Role, error) {
	var role Role
	err := pgxscan.Get(ctx, t.tx, &role, `
UPDATE roles SET name = $2, updated_at = $3 WHERE id = $1
RETURNING `+roleColumns, id, name, at)
	if err != nil {
		if pgxscan.NotFound(err) {
			return Role{}, ErrNotFound
		}
		if _, ok := db.UniqueViolation(err); ok {
			return Role{}, nameTaken()
		}
		return Role{}, fmt.Errorf("roles: update: %w", err)
	}
	return role, nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("roles: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("roles: delete many: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) PermissionIDs(ctx context.Context, id int64) ([]int64, error) {
	return t.assoc.RelatedIDs(ctx, t.tx, associations.RolePermissions, id)
}

func (t *txRepo) SyncPermissions(ctx context.Context, id int64, permissionIDs []int64) error {
	return t.assoc.Sync(ctx, t.tx, associations.RolePermissions, id, permissionIDs)
}

func (t *txRepo) PermissionCatalog(ctx context.Context) ([]associations.Record, error) {
	return t.assoc.Catalog(ctx, t.tx, associations.RolePermissions)
}

var _ Repository = (*PGRepository)(nil)

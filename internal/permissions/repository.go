package permissions

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

// Repository opens units of work over the permission store.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	List(ctx context.Context) ([]Permission, error)
	Get(ctx context.Context, id int64) (Permission, error)
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, name string, at time.Time) (Permission, error)
	Update(ctx context.Context, id int64, name string, at time.Time) (Permission, error)
	Delete(ctx context.Context, id int64) (int64, error)
	DeleteMany(ctx context.Context, ids []int64) (int64, error)

	RoleIDs(ctx context.Context, id int64) ([]int64, error)
	SyncRoles(ctx context.Context, id int64, roleIDs []int64) error
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

const permissionColumns = `id, name, created_at, updated_at`

func (t *txRepo) List(ctx context.Context) ([]Permission, error) {
	var out []Permission
	if err := pgxscan.Select(ctx, t.tx, &out, `SELECT `+permissionColumns+` FROM permissions ORDER BY id`); err != nil {
		return nil, fmt.Errorf("permissions: list: %w", err)
	}
	return out, nil
}

func (t *txRepo) Get(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	if err := pgxscan.Get(ctx, t.tx, &p, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id); err != nil {
		if pgxscan.NotFound(err) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, fmt.Errorf("permissions: get: %w", err)
	}
	return p, nil
}

func (t *txRepo) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM permissions WHERE name = $1 AND id <> $2)`, name, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("permissions: name taken: %w", err)
	}
	return taken, nil
}

func (t *txRepo) Create(ctx context.Context, name string, at time.Time) (Permission, error) {
	var p Permission
	err := pgxscan.Get(ctx, t.tx, &p, `
INSERT INTO permissions (name, created_at, updated_at) VALUES ($1, $2, $2)
RETURNING `+permissionColumns, name, at)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return Permission{}, nameTaken()
		}
		return Permission{}, fmt.Errorf("permissions: create: %w", err)
	}
	return p, nil
}

func (t *txRepo) Update(ctx context.Context, id int64, name string, at time.Time) (Permission, error) {
	var p Permission
	err := pgxscan.Get(ctx, t.tx, &p, `
UPDATE permissions SET name = $2, updated_at = $3 WHERE id = $1
RETURNING `+permissionColumns, id, name, at)
	if err != nil {
		if pgxscan.NotFound(err) {
			return Permission{}, ErrNotFound
		}
		if _, ok := db.UniqueViolation(err); ok {
			return Permission{}, nameTaken()
		}
		return Permission{}, fmt.Errorf("permissions: update: %w", err)
	}
	return p, nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("permissions: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("permissions: delete many: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) RoleIDs(ctx context.Context, id int64) ([]int64, error) {
	return t.assoc.RelatedIDs(ctx, t.tx, associations.PermissionRoles, id)
}

func (t *txRepo) SyncRoles(ctx context.Context, id int64, roleIDs []int64) error {
	return t.assoc.Sync(ctx, t.tx, associations.PermissionRoles, id, roleIDs)
}

func (t *txRepo) RoleCatalog(ctx context.Context) ([]associations.Record, error) {
	return t.assoc.Catalog(ctx, t.tx, associations.PermissionRoles)
}

var _ Repository = (*PGRepository)(nil)

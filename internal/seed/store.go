package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool  *pgxpool.Pool
	assoc *associations.Manager
}

// NewStore constructs a PGStore.
func NewStore(pool *pgxpool.Pool, assoc *associations.Manager) *PGStore {
	return &PGStore{pool: pool, assoc: assoc}
}

// WithTx runs fn in a repeatable-read transaction.
func (s *PGStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, assoc: s.assoc})
	})
}

type pgTx struct {
	tx    pgx.Tx
	assoc *associations.Manager
}

// The no-op update makes RETURNING yield the id of an existing row.
const upsertNamed = `
INSERT INTO %s (name, created_at, updated_at) VALUES ($1, $2, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`

func (t *pgTx) UpsertPermission(ctx context.Context, name string, at time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, fmt.Sprintf(upsertNamed, "permissions"), name, at).Scan(&id)
	return id, err
}

func (t *pgTx) UpsertRole(ctx context.Context, name string, at time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, fmt.Sprintf(upsertNamed, "roles"), name, at).Scan(&id)
	return id, err
}

func (t *pgTx) SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return t.assoc.Sync(ctx, t.tx, associations.RolePermissions, roleID, permissionIDs)
}

func (t *pgTx) UserIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (t *pgTx) CreateUser(ctx context.Context, name, email, passwordHash string, at time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO users (name, email, password, email_verified_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4, $4)
RETURNING id`, name, email, passwordHash, at).Scan(&id)
	return id, err
}

func (t *pgTx) GrantRole(ctx context.Context, userID, roleID int64) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

var _ Store = (*PGStore)(nil)

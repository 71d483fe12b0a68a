package rbac

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
)

// Repository reads actors from PostgreSQL.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// UserExists reports whether a user row exists.
func (r *Repository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("rbac: user exists: %w", err)
	}
	return exists, nil
}

// EffectivePermissions returns the distinct permission names granted through
// any of the user's roles.
func (r *Repository) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := pgxscan.Select(ctx, r.q, &names, `
SELECT DISTINCT p.name
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1
ORDER BY p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: effective permissions: %w", err)
	}
	return names, nil
}

var _ ActorStore = (*Repository)(nil)

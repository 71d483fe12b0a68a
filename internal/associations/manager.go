// Package associations maintains the many-to-many links between users,
// roles and permissions. Every operation runs on the caller's transaction.
package associations

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
)

// Edge describes one side of a join table.
type Edge struct {
	// Field is the input field reported in validation errors.
	Field string
	// Table is the join table.
	Table string
	// OwnerColumn references the entity being edited.
	OwnerColumn string
	// RelatedColumn references the associated entity.
	RelatedColumn string
	// RelatedTable holds the associated entities.
	RelatedTable string
}

// Join tables. The permission side of role_permissions is the inverse of the
// role side.
var (
	RolePermissions = Edge{Field: "permissions", Table: "role_permissions", OwnerColumn: "role_id", RelatedColumn: "permission_id", RelatedTable: "permissions"}
	PermissionRoles = Edge{Field: "roles", Table: "role_permissions", OwnerColumn: "permission_id", RelatedColumn: "role_id", RelatedTable: "roles"}
	UserRoles       = Edge{Field: "roles", Table: "user_roles", OwnerColumn: "user_id", RelatedColumn: "role_id", RelatedTable: "roles"}
)

// Record is an entry of a reference catalog.
type Record struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Manager reads and replaces association sets.
type Manager struct{}

// NewManager constructs a Manager.
func NewManager() *Manager {
	return &Manager{}
}

// RelatedIDs returns the ids linked to ownerID in ascending order.
func (m *Manager) RelatedIDs(ctx context.Context, q db.Querier, edge Edge, ownerID int64) ([]int64, error) {
	var ids []int64
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s`,
		edge.RelatedColumn, edge.Table, edge.OwnerColumn, edge.RelatedColumn)
	if err := pgxscan.Select(ctx, q, &ids, query, ownerID); err != nil {
		return nil, fmt.Errorf("associations: list %s: %w", edge.Table, err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// Catalog returns every row of the related table ordered by id.
func (m *Manager) Catalog(ctx context.Context, q db.Querier, edge Edge) ([]Record, error) {
	var records []Record
	query := fmt.Sprintf(`SELECT id, name, created_at, updated_at FROM %s ORDER BY id`, edge.RelatedTable)
	if err := pgxscan.Select(ctx, q, &records, query); err != nil {
		return nil, fmt.Errorf("associations: catalog %s: %w", edge.RelatedTable, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Sync makes the set linked to ownerID equal to ids. Duplicates are collapsed,
// links outside ids are removed and missing ones inserted. Unknown related ids
// fail with a validation error before anything is written.
func (m *Manager) Sync(ctx context.Context, q db.Querier, edge Edge, ownerID int64, ids []int64) error {
	wanted := Normalize(ids)
	if len(wanted) > 0 {
		var found []int64
		query := fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1)`, edge.RelatedTable)
		if err := pgxscan.Select(ctx, q, &found, query, wanted); err != nil {
			return fmt.Errorf("associations: check %s: %w", edge.RelatedTable, err)
		}
		if missing := Missing(wanted, found); len(missing) > 0 {
			return invalidIDs(edge, ids, missing)
		}
	}

	del := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND NOT (%s = ANY($2))`,
		edge.Table, edge.OwnerColumn, edge.RelatedColumn)
	if _, err := q.Exec(ctx, del, ownerID, wanted); err != nil {
		return fmt.Errorf("associations: detach %s: %w", edge.Table, err)
	}
	if len(wanted) == 0 {
		return nil
	}

	ins := fmt.Sprintf(`INSERT INTO %s (%s, %s) SELECT $1, related FROM unnest($2::bigint[]) AS related ON CONFLICT DO NOTHING`,
		edge.Table, edge.OwnerColumn, edge.RelatedColumn)
	if _, err := q.Exec(ctx, ins, ownerID, wanted); err != nil {
		if db.ForeignKeyViolation(err) {
			return invalidIDs(edge, ids, wanted)
		}
		return fmt.Errorf("associations: attach %s: %w", edge.Table, err)
	}
	return nil
}

// Normalize drops non-positive ids and duplicates, returning a sorted slice
// that is never nil.
func Normalize(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Missing returns the members of wanted absent from found.
func Missing(wanted, found []int64) []int64 {
	present := make(map[int64]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []int64
	for _, id := range wanted {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// invalidIDs reports each offending id at its position in the client input.
func invalidIDs(edge Edge, input, missing []int64) error {
	verr := &httpx.ValidationError{}
	bad := make(map[int64]struct{}, len(missing))
	for _, id := range missing {
		bad[id] = struct{}{}
	}
	for i, id := range input {
		if _, ok := bad[id]; ok {
			field := edge.Field + "." + strconv.Itoa(i)
			verr.Add(field, fmt.Sprintf("The selected %s is invalid.", field))
		}
	}
	return verr
}

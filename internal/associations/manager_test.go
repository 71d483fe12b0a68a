package associations

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 5}, Normalize([]int64{5, 2, 2, 1, 5, 0, -3}))

	empty := Normalize(nil)
	require.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMissing(t *testing.T) {
	assert.Equal(t, []int64{3, 9}, Missing([]int64{1, 3, 7, 9}, []int64{7, 1}))
	assert.Empty(t, Missing([]int64{1, 2}, []int64{2, 1, 4}))
}

func TestInvalidIDsReportsInputPositions(t *testing.T) {
	err := invalidIDs(RolePermissions, []int64{4, 99, 4, 100}, []int64{99, 100})

	var verr *httpx.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, map[string][]string{
		"permissions.1": {"The selected permissions.1 is invalid."},
		"permissions.3": {"The selected permissions.3 is invalid."},
	}, verr.Fields)
}

func TestEdgesShareJoinTable(t *testing.T) {
	assert.Equal(t, RolePermissions.Table, PermissionRoles.Table)
	assert.Equal(t, RolePermissions.OwnerColumn, PermissionRoles.RelatedColumn)
	assert.Equal(t, RolePermissions.RelatedColumn, PermissionRoles.OwnerColumn)
	assert.Equal(t, "roles", UserRoles.RelatedTable)
}

func TestSyncReplacesSet(t *testing.T) {
	q := newFakeQuerier(1, 2, 3, 4)
	q.links[7] = []int64{1, 2}

	err := NewManager().Sync(context.Background(), q, RolePermissions, 7, []int64{3, 2, 3})

	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, q.links[7])
	require.Len(t, q.calls, 3)
	assert.Equal(t, []any{[]int64{2, 3}}, q.calls[0].args)
	assert.Equal(t, "DELETE FROM role_permissions WHERE role_id = $1 AND NOT (permission_id = ANY($2))", q.calls[1].sql)
	assert.Equal(t, []any{int64(7), []int64{2, 3}}, q.calls[1].args)
	assert.Contains(t, q.calls[2].sql, "INSERT INTO role_permissions (role_id, permission_id)")
	assert.Contains(t, q.calls[2].sql, "ON CONFLICT DO NOTHING")
	assert.Equal(t, []any{int64(7), []int64{2, 3}}, q.calls[2].args)
}

func TestSyncEmptySetDetachesEverything(t *testing.T) {
	for _, input := range [][]int64{nil, {}, {0, -1}} {
		q := newFakeQuerier(1, 2)
		q.links[7] = []int64{1, 2}

		err := NewManager().Sync(context.Background(), q, UserRoles, 7, input)

		require.NoError(t, err)
		assert.Empty(t, q.links[7])
		require.Len(t, q.calls, 1, "only the delete runs")
		assert.Contains(t, q.calls[0].sql, "DELETE FROM user_roles")
		ids, ok := q.calls[0].args[1].([]int64)
		require.True(t, ok)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	q := newFakeQuerier(1, 2, 3)
	m := NewManager()
	ctx := context.Background()

	require.NoError(t, m.Sync(ctx, q, PermissionRoles, 5, []int64{3, 1}))
	first := q.calls
	state := append([]int64(nil), q.links[5]...)

	q.calls = nil
	require.NoError(t, m.Sync(ctx, q, PermissionRoles, 5, []int64{1, 3, 3}))

	assert.Equal(t, first, q.calls)
	assert.Equal(t, state, q.links[5])
	assert.Equal(t, []int64{1, 3}, q.links[5])
}

func TestSyncRejectsUnknownIDsBeforeWriting(t *testing.T) {
	q := newFakeQuerier(1, 2)
	q.links[7] = []int64{1}

	err := NewManager().Sync(context.Background(), q, RolePermissions, 7, []int64{2, 99, 2, 42})

	var verr *httpx.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string][]string{
		"permissions.1": {"The selected permissions.1 is invalid."},
		"permissions.3": {"The selected permissions.3 is invalid."},
	}, verr.Fields)
	assert.Zero(t, q.execs)
	assert.Equal(t, []int64{1}, q.links[7])
}

func TestSyncMapsForeignKeyViolation(t *testing.T) {
	q := newFakeQuerier(1, 2)
	q.insertErr = &pgconn.PgError{Code: "23503"}

	err := NewManager().Sync(context.Background(), q, UserRoles, 7, []int64{2, 1})

	var verr *httpx.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"The selected roles.0 is invalid."}, verr.Fields["roles.0"])
	assert.Equal(t, []string{"The selected roles.1 is invalid."}, verr.Fields["roles.1"])
}

func TestSyncWrapsOtherInsertErrors(t *testing.T) {
	q := newFakeQuerier(1)
	q.insertErr = &pgconn.PgError{Code: "57014"}

	err := NewManager().Sync(context.Background(), q, UserRoles, 7, []int64{1})

	require.Error(t, err)
	assert.NotErrorIs(t, err, httpx.ErrValidation)
	assert.Contains(t, err.Error(), "attach user_roles")
}

func TestRelatedIDs(t *testing.T) {
	q := newFakeQuerier(1, 2)
	q.links[7] = []int64{1, 2}
	m := NewManager()

	ids, err := m.RelatedIDs(context.Background(), q, UserRoles, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, "SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id", q.calls[0].sql)

	ids, err = m.RelatedIDs(context.Background(), q, UserRoles, 8)
	require.NoError(t, err)
	require.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestCatalog(t *testing.T) {
	m := NewManager()

	records, err := m.Catalog(context.Background(), newFakeQuerier(2, 1), RolePermissions)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, "Related 1", records[0].Name)
	assert.False(t, records[1].CreatedAt.IsZero())

	records, err = m.Catalog(context.Background(), newFakeQuerier(), RolePermissions)
	require.NoError(t, err)
	require.NotNil(t, records)
	assert.Empty(t, records)
}

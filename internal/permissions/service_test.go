package permissions

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/datatable"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	permissions map[int64]Permission
	roles       map[int64]associations.Record
	links       map[int64][]int64
	nextID      int64
	txCalls     int

	// Error injection
	txError     error
	createError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		permissions: make(map[int64]Permission),
		roles: map[int64]associations.Record{
			1: {ID: 1, Name: "Super Admin"},
			2: {ID: 2, Name: "Auditor"},
		},
		links:  make(map[int64][]int64),
		nextID: 1,
	}
}

// WithTx restores the previous state when fn fails.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.txCalls++
	if m.txError != nil {
		return m.txError
	}
	perms, links, next := maps.Clone(m.permissions), maps.Clone(m.links), m.nextID
	if err := fn(ctx, &mockTxRepo{mock: m}); err != nil {
		m.permissions, m.links, m.nextID = perms, links, next
		return err
	}
	return nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) List(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(t.mock.permissions))
	for _, id := range slices.Sorted(maps.Keys(t.mock.permissions)) {
		out = append(out, t.mock.permissions[id])
	}
	return out, nil
}

func (t *mockTxRepo) Get(ctx context.Context, id int64) (Permission, error) {
	p, ok := t.mock.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (t *mockTxRepo) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	for id, p := range t.mock.permissions {
		if p.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (t *mockTxRepo) Create(ctx context.Context, name string, at time.Time) (Permission, error) {
	if t.mock.createError != nil {
		return Permission{}, t.mock.createError
	}
	p := Permission{ID: t.mock.nextID, Name: name, CreatedAt: at, UpdatedAt: at}
	t.mock.permissions[p.ID] = p
	t.mock.nextID++
	return p, nil
}

func (t *mockTxRepo) Update(ctx context.Context, id int64, name string, at time.Time) (Permission, error) {
	p, ok := t.mock.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	p.Name = name
	p.UpdatedAt = at
	t.mock.permissions[id] = p
	return p, nil
}

func (t *mockTxRepo) Delete(ctx context.Context, id int64) (int64, error) {
	if _, ok := t.mock.permissions[id]; !ok {
		return 0, nil
	}
	delete(t.mock.permissions, id)
	delete(t.mock.links, id)
	return 1, nil
}

func (t *mockTxRepo) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		deleted, _ := t.Delete(ctx, id)
		n += deleted
	}
	return n, nil
}

func (t *mockTxRepo) RoleIDs(ctx context.Context, id int64) ([]int64, error) {
	return append([]int64{}, t.mock.links[id]...), nil
}

func (t *mockTxRepo) SyncRoles(ctx context.Context, id int64, roleIDs []int64) error {
	wanted := associations.Normalize(roleIDs)
	for i, rid := range wanted {
		if _, ok := t.mock.roles[rid]; !ok {
			return httpx.FieldError(fmt.Sprintf("roles.%d", i), "The selected role is invalid.")
		}
	}
	t.mock.links[id] = wanted
	return nil
}

func (t *mockTxRepo) RoleCatalog(ctx context.Context) ([]associations.Record, error) {
	out := make([]associations.Record, 0, len(t.mock.roles))
	for _, id := range slices.Sorted(maps.Keys(t.mock.roles)) {
		out = append(out, t.mock.roles[id])
	}
	return out, nil
}

// ============================================================================
// HELPERS
// ============================================================================

var allCaps = rbac.Capabilities{List: true, View: true, Create: true, Update: true, Delete: true}

func newTestService(repo *mockRepository) *Service {
	svc := NewService(repo)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

func roles(ids ...int64) *[]int64 {
	return &ids
}

func requireFieldError(t *testing.T, err error, field, message string) {
	t.Helper()
	var verr *httpx.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	assert.Equal(t, []string{message}, verr.Fields[field])
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateRequiresCapability(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), rbac.Capabilities{List: true}, Input{Name: "Edit Invoices"})

	assert.ErrorIs(t, err, httpx.ErrForbidden)
	assert.Zero(t, repo.txCalls)
	assert.Empty(t, repo.permissions)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc := newTestService(newMockRepository())
	ctx := context.Background()

	created, err := svc.Create(ctx, allCaps, Input{Name: "Edit Invoices"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, []int64{}, created.Roles)

	_, err = svc.Create(ctx, allCaps, Input{Name: "  Edit Invoices "})
	requireFieldError(t, err, "name", "Permission name has been used")
}

func TestCreateValidatesName(t *testing.T) {
	svc := newTestService(newMockRepository())

	_, err := svc.Create(context.Background(), allCaps, Input{Name: "   "})
	requireFieldError(t, err, "name", "The name field is required.")
}

func TestCreateMapsUniqueConstraintRace(t *testing.T) {
	repo := newMockRepository()
	repo.createError = nameTaken()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), allCaps, Input{Name: "Edit Invoices"})
	requireFieldError(t, err, "name", "Permission name has been used")
}

func TestCreateWithUnknownRoleRollsBack(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), allCaps, Input{Name: "Edit Invoices", Roles: roles(1, 99)})

	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Empty(t, repo.permissions)
}

func TestPermissionsKeyIsRejected(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, allCaps, Input{Name: "Edit Invoices", Permissions: &[]int64{1}})
	requireFieldError(t, err, "permissions", "The permissions field is prohibited.")
	assert.Empty(t, repo.permissions)

	_, err = svc.Create(ctx, allCaps, Input{Name: "Edit Invoices", Permissions: &[]int64{}})
	requireFieldError(t, err, "permissions", "The permissions field is prohibited.")
	assert.Empty(t, repo.permissions)
}

func TestUpdateAllowsOwnName(t *testing.T) {
	svc := newTestService(newMockRepository())
	ctx := context.Background()
	created, err := svc.Create(ctx, allCaps, Input{Name: "Edit Invoices"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, allCaps, created.ID, Input{Name: "Edit Invoices"})
	require.NoError(t, err)
	assert.Equal(t, "Edit Invoices", updated.Name)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdateRejectsNameOfAnotherPermission(t *testing.T) {
	svc := newTestService(newMockRepository())
	ctx := context.Background()
	_, err := svc.Create(ctx, allCaps, Input{Name: "Edit Invoices"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, allCaps, Input{Name: "Void Invoices"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, allCaps, other.ID, Input{Name: "Edit Invoices"})
	requireFieldError(t, err, "name", "Permission name has been used")
}

func TestUpdateUnknownPermission(t *testing.T) {
	svc := newTestService(newMockRepository())

	_, err := svc.Update(context.Background(), allCaps, 42, Input{Name: "Anything"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRoleSetReplacement(t *testing.T) {
	svc := newTestService(newMockRepository())
	ctx := context.Background()

	created, err := svc.Create(ctx, allCaps, Input{Name: "Edit Invoices", Roles: roles(2, 1, 2)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, created.Roles)

	kept, err := svc.Update(ctx, allCaps, created.ID, Input{Name: "Edit Invoices"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, kept.Roles)

	cleared, err := svc.Update(ctx, allCaps, created.ID, Input{Name: "Edit Invoices", Roles: roles()})
	require.NoError(t, err)
	assert.Empty(t, cleared.Roles)

	page, err := svc.Show(ctx, allCaps, created.ID)
	require.NoError(t, err)
	assert.Empty(t, page.Data.Roles)
}

func TestShowAndEditPages(t *testing.T) {
	svc := newTestService(newMockRepository())
	ctx := context.Background()
	created, err := svc.Create(ctx, allCaps, Input{Name: "Edit Invoices", Roles: roles(2)})
	require.NoError(t, err)

	page, err := svc.Show(ctx, allCaps, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "show", page.Type)
	assert.Equal(t, allCaps, page.Permissions)
	assert.Equal(t, []int64{2}, page.Data.Roles)
	assert.Len(t, page.ReferenceList, 2)

	page, err = svc.Edit(ctx, allCaps, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "edit", page.Type)

	_, err = svc.Edit(ctx, rbac.Capabilities{View: true}, created.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	form, err := svc.CreateForm(ctx, allCaps)
	require.NoError(t, err)
	assert.Nil(t, form.Data)
	assert.Len(t, form.ReferenceList, 2)
}

func TestDeleteThenShowIsNotFound(t *testing.T) {
	svc := newTestService(newMockRepository())
	ctx := context.Background()
	created, err := svc.Create(ctx, allCaps, Input{Name: "Edit Invoices"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, allCaps, created.ID))

	_, err = svc.Show(ctx, allCaps, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, allCaps, created.ID), ErrNotFound)
}

func TestDeleteBulkIgnoresMissingIDs(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()
	a, err := svc.Create(ctx, allCaps, Input{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, allCaps, Input{Name: "B"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBulk(ctx, allCaps, httpx.IDList{IDs: []int64{a.ID, 999}}))
	assert.NotContains(t, repo.permissions, a.ID)
	assert.Contains(t, repo.permissions, b.ID)

	err = svc.DeleteBulk(ctx, allCaps, httpx.IDList{})
	requireFieldError(t, err, "ids", "The ids field is required.")

	err = svc.DeleteBulk(ctx, rbac.Capabilities{List: true}, httpx.IDList{IDs: []int64{b.ID}})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	assert.Contains(t, repo.permissions, b.ID)
}

func TestDatatablePaging(t *testing.T) {
	svc := newTestService(newMockRepository())
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		_, err := svc.Create(ctx, allCaps, Input{Name: fmt.Sprintf("Permission %02d", i)})
		require.NoError(t, err)
	}

	resp, err := svc.Datatable(ctx, allCaps, datatable.Request{
		Draw:    2,
		Columns: []datatable.Column{{Data: "id", Searchable: true, Orderable: true}, {Data: "name", Searchable: true, Orderable: true}},
		Order:   []datatable.Order{{Column: 0, Dir: "asc"}},
		Start:   5,
		Length:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Draw)
	assert.Equal(t, 12, resp.RecordsTotal)
	assert.Equal(t, 12, resp.RecordsFiltered)
	require.Len(t, resp.Data, 5)
	assert.Equal(t, "Permission 06", resp.Data[0].Name)
	assert.Equal(t, "Permission 10", resp.Data[4].Name)

	_, err = svc.Datatable(ctx, rbac.Capabilities{}, datatable.Request{})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestRepositoryFailurePropagates(t *testing.T) {
	repo := newMockRepository()
	repo.txError = errors.New("connection reset")
	svc := newTestService(repo)

	_, err := svc.Show(context.Background(), allCaps, 1)
	assert.EqualError(t, err, "connection reset")
}

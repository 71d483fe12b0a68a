package permissions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

func newTestRouter(t *testing.T, repo *mockRepository, granted ...string) http.Handler {
	t.Helper()
	h := NewHandler(nil, newTestService(repo), rbac.Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			actor := rbac.NewActor(1, granted)
			next.ServeHTTP(w, req.WithContext(rbac.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/permission", h.MountRoutes)
	return r
}

func allPermissionNames() []string {
	names := make([]string, 0, 5)
	for _, a := range rbac.Actions() {
		names = append(names, rbac.PermissionName(rbac.ModulePermission, a))
	}
	return names
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded), rr.Body.String())
	}
	return rr, decoded
}

func TestStorePermissionThenDuplicate(t *testing.T) {
	router := newTestRouter(t, newMockRepository(), allPermissionNames()...)

	rr, body := do(t, router, http.MethodPost, "/permission", `{"name":"Edit Invoices"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Edit Invoices", data["name"])
	assert.EqualValues(t, 1, data["id"])
	assert.Contains(t, data, "created_at")

	rr, body = do(t, router, http.MethodPost, "/permission", `{"name":"Edit Invoices"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Form Validation Error", body["message"])
	errs := body["errors"].(map[string]any)
	assert.Equal(t, []any{"Permission name has been used"}, errs["name"])
}

func TestStoreWithoutPermissionIsForbidden(t *testing.T) {
	repo := newMockRepository()
	router := newTestRouter(t, repo, "Permission Lists")

	rr, _ := do(t, router, http.MethodPost, "/permission", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, repo.permissions)

	rr, _ = do(t, router, http.MethodGet, "/permission/1/edit", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestStoreValidationFailure(t *testing.T) {
	router := newTestRouter(t, newMockRepository(), allPermissionNames()...)

	rr, body := do(t, router, http.MethodPost, "/permission", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errs := body["errors"].(map[string]any)
	assert.Equal(t, []any{"The name field is required."}, errs["name"])
}

func TestStoreRejectsPermissionsKey(t *testing.T) {
	repo := newMockRepository()
	router := newTestRouter(t, repo, allPermissionNames()...)

	rr, body := do(t, router, http.MethodPost, "/permission", `{"name":"Edit Invoices","permissions":[1]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errs := body["errors"].(map[string]any)
	assert.Equal(t, []any{"The permissions field is prohibited."}, errs["permissions"])
	assert.Empty(t, repo.permissions)

	rr, _ = do(t, router, http.MethodPost, "/permission", `{"name":"Edit Invoices","permissions":null}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestIndexReturnsCapabilities(t *testing.T) {
	router := newTestRouter(t, newMockRepository(), "Permission Lists", "Permission Views")

	rr, body := do(t, router, http.MethodGet, "/permission", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{
		"list": true, "view": true, "create": false, "update": false, "delete": false,
	}, body["permissions"])
}

func TestShowUpdateDestroyFlow(t *testing.T) {
	router := newTestRouter(t, newMockRepository(), allPermissionNames()...)

	rr, _ := do(t, router, http.MethodPost, "/permission", `{"name":"Edit Invoices","roles":[1]}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, body := do(t, router, http.MethodGet, "/permission/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "show", body["type"])
	assert.Equal(t, []any{float64(1)}, body["data"].(map[string]any)["roles"])
	assert.Len(t, body["reference_list"], 2)

	rr, body = do(t, router, http.MethodPut, "/permission/1", `{"name":"Approve Invoices","roles":[]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Approve Invoices", body["data"].(map[string]any)["name"])
	assert.Equal(t, []any{}, body["data"].(map[string]any)["roles"])

	rr, body = do(t, router, http.MethodDelete, "/permission/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])

	rr, _ = do(t, router, http.MethodGet, "/permission/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = do(t, router, http.MethodGet, "/permission/abc", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDestroyBulk(t *testing.T) {
	repo := newMockRepository()
	router := newTestRouter(t, repo, allPermissionNames()...)
	for _, name := range []string{"A", "B", "C"} {
		rr, _ := do(t, router, http.MethodPost, "/permission", `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr, body := do(t, router, http.MethodDelete, "/permission", `{"ids":[1,3,404]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, repo.permissions, 1)

	rr, body = do(t, router, http.MethodDelete, "/permission", `{"ids":[]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, body["errors"], "ids")
}

func TestDatatablesEndpoint(t *testing.T) {
	router := newTestRouter(t, newMockRepository(), allPermissionNames()...)
	for _, name := range []string{"Edit Invoices", "Void Invoices", "Edit Orders"} {
		rr, _ := do(t, router, http.MethodPost, "/permission", `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr, body := do(t, router, http.MethodPost, "/permission/datatables", `{
		"draw": 4,
		"columns": [{"data":"id","searchable":true,"orderable":true,"search":{"value":"","regex":false}},
		            {"data":"name","searchable":true,"orderable":true,"search":{"value":"","regex":false}}],
		"order": [{"column":1,"dir":"desc"}],
		"start": 0,
		"length": 10,
		"search": {"value":"invoices","regex":false}
	}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 4, body["draw"])
	assert.EqualValues(t, 3, body["recordsTotal"])
	assert.EqualValues(t, 2, body["recordsFiltered"])
	rows := body["data"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "Void Invoices", rows[0].(map[string]any)["name"])
}

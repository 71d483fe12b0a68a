package users

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

func newTestRouter(repo *mockRepository, granted ...string) http.Handler {
	h := NewHandler(nil, newTestService(repo), rbac.Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := rbac.ContextWithActor(req.Context(), rbac.NewActor(1, granted))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/user", h.MountRoutes)
	return r
}

func send(t *testing.T, h http.Handler, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var out map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr.Code, out
}

func TestUserLifecycle(t *testing.T) {
	router := newTestRouter(newMockRepository(),
		"User Lists", "User Views", "User Creates", "User Updates", "User Deletes")

	code, body := send(t, router, http.MethodPost, "/user",
		`{"name":"Ana","email":"ana@example.com","password":"secret-pass","roles":[2,1]}`)
	require.Equal(t, http.StatusCreated, code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ana@example.com", data["email"])
	assert.Equal(t, []any{float64(1), float64(2)}, data["roles"])
	assert.NotContains(t, data, "password")
	assert.Nil(t, data["email_verified_at"])

	code, body = send(t, router, http.MethodGet, "/user/1/edit", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "edit", body["type"])
	assert.Len(t, body["reference_list"], 3)

	code, body = send(t, router, http.MethodPatch, "/user/1", `{"name":"Ana","email":"ana@example.com","roles":[3]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{float64(3)}, body["data"].(map[string]any)["roles"])

	code, body = send(t, router, http.MethodDelete, "/user/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, _ = send(t, router, http.MethodGet, "/user/1", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStoreUserValidationBody(t *testing.T) {
	router := newTestRouter(newMockRepository(), "User Creates")

	code, body := send(t, router, http.MethodPost, "/user", `{"name":"Ana","email":"nope","roles":[0]}`)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Form Validation Error", body["message"])
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
	assert.Contains(t, errs, "roles.0")
}

func TestUserRoutesForbiddenWithoutCapability(t *testing.T) {
	repo := newMockRepository()
	router := newTestRouter(repo, "User Views")

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/user"},
		{http.MethodPost, "/user/datatables"},
		{http.MethodGet, "/user/create"},
		{http.MethodPost, "/user"},
		{http.MethodPut, "/user/1"},
		{http.MethodDelete, "/user/1"},
		{http.MethodDelete, "/user"},
	} {
		code, body := send(t, router, tc.method, tc.target, "")
		assert.Equal(t, http.StatusForbidden, code, "%s %s", tc.method, tc.target)
		assert.Equal(t, "This action is unauthorized.", body["message"])
	}
	assert.Zero(t, repo.txCalls)

	code, _ := send(t, router, http.MethodGet, "/user/5", "")
	assert.Equal(t, http.StatusNotFound, code)
}

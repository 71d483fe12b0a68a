package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "admin_session", time.Hour, false), mr
}

func cookieFrom(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	sm, mr := newTestManager(t)

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("42")
	sess.Set("k", "v")

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	assert.True(t, mr.Exists("session:"+sess.ID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFrom(t, rr, "admin_session"))
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "42", loaded.User())
	assert.Equal(t, "v", loaded.Get("k"))
}

func TestSessionUnknownCookieGetsNewID(t *testing.T) {
	sm, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: "forged"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "forged", sess.ID)
	assert.Empty(t, sess.User())
}

func TestSessionRegenerateAndDestroy(t *testing.T) {
	ctx := context.Background()
	sm, mr := newTestManager(t)

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: oldID})
	sess, err = sm.Load(ctx, req)
	require.NoError(t, err)

	sm.Regenerate(sess)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	assert.NotEqual(t, oldID, sess.ID)
	assert.False(t, mr.Exists("session:"+oldID))
	assert.True(t, mr.Exists("session:"+sess.ID))

	sm.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	assert.False(t, mr.Exists("session:"+sess.ID))
	assert.Equal(t, -1, cookieFrom(t, rr, "admin_session").MaxAge)
}

func TestCSRFTokenLifecycle(t *testing.T) {
	sm, _ := newTestManager(t)
	csrf := NewCSRFManager("csrf-secret")
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(sess, "bogus"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(nil, token), ErrCSRFTokenMissing)

	_, err = csrf.EnsureToken(nil)
	assert.ErrorIs(t, err, ErrSessionMissing)
}

func TestMiddlewareCommitsBeforeBody(t *testing.T) {
	sm, mr := newTestManager(t)
	csrf := NewCSRFManager("csrf-secret")

	var token string
	h := sm.Middleware(nil)(csrf.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			token, _ = csrf.EnsureToken(SessionFromContext(r.Context()))
		}
		_, _ = w.Write([]byte(`{}`))
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := cookieFrom(t, rr, "admin_session")
	assert.True(t, mr.Exists("session:"+cookie.Value))
	require.NotEmpty(t, token)

	post := httptest.NewRequest(http.MethodPost, "/", nil)
	post.AddCookie(cookie)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, post)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), CSRFMismatchMessage)

	post = httptest.NewRequest(http.MethodPost, "/", nil)
	post.AddCookie(cookie)
	post.Header.Set(CSRFHeader, token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, post)
	assert.Equal(t, http.StatusOK, rr.Code)
}

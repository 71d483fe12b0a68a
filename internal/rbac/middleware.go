package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-admin/internal/observability"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// LoginPath is where unauthenticated browser requests are sent.
const LoginPath = "/auth/login"

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Gate    *Gate
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Authenticate loads the actor for the session user. Requests without a
// valid session never reach the handlers: JSON clients receive 401, browsers
// are redirected to the login page.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.currentUserID(r)
		if !ok {
			m.unauthenticated(w, r)
			return
		}
		actor, err := m.Gate.Actor(r.Context(), userID)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				m.unauthenticated(w, r)
				return
			}
			m.logger().Error("rbac load actor", slog.Int64("user_id", userID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// ForModule resolves the actor's capabilities on mod once per request.
func (m Middleware) ForModule(mod Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				m.unauthenticated(w, r)
				return
			}
			ctx := ContextWithCapabilities(r.Context(), actor.Capabilities(mod))
			next.ServeHTTP(w, r.WithContext(withModule(ctx, mod)))
		})
	}
}

// Require rejects the request with 403 unless the resolved capabilities
// allow the action.
func (m Middleware) Require(act Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Authorize(CapabilitiesFromContext(r.Context()), act); err != nil {
				m.Metrics.AuthorizationDenied(string(moduleFromContext(r.Context())), string(act))
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.RespondError(w, ErrUnauthenticated)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		m.logger().Error("rbac parse user id", slog.String("value", raw))
		return 0, false
	}
	return id, true
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

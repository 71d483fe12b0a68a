package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-admin/internal/auth"
	"github.com/odyssey-erp/odyssey-admin/internal/observability"
	"github.com/odyssey-erp/odyssey-admin/internal/permissions"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/roles"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
	"github.com/odyssey-erp/odyssey-admin/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *permissions.Handler
	RBACMiddleware     rbac.Middleware
	Metrics            *observability.Metrics
	Tracing            *observability.Tracing
	// HealthCheck reports backing store reachability. Nil means always healthy.
	HealthCheck func(context.Context) error
}

// NewRouter constructs the chi.Router with admin defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.ErrNotFound)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.HealthCheck != nil {
			if err := params.HealthCheck(r.Context()); err != nil {
				params.Logger.Error("health check", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// CSRF runs after authentication so unauthenticated clients always get
	// 401 or the login redirect rather than a token mismatch.
	csrf := params.CSRFManager.Middleware(params.Logger)

	r.Route("/auth", func(r chi.Router) {
		r.Use(csrf)
		params.AuthHandler.MountRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate, csrf)
		r.Route("/user", params.UsersHandler.MountRoutes)
		r.Route("/role", params.RolesHandler.MountRoutes)
		r.Route("/permission", params.PermissionsHandler.MountRoutes)
	})

	return params.Tracing.Middleware(r)
}

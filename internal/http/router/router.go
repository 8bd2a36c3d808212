package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quickserve/pos-device-access/internal/http/handler"
	"github.com/quickserve/pos-device-access/internal/http/middleware"
	"github.com/quickserve/pos-device-access/internal/http/response"
	"github.com/quickserve/pos-device-access/internal/policy"
	"github.com/quickserve/pos-device-access/internal/security"
)

type Dependencies struct {
	DeviceHandler    *handler.DeviceHandler
	SessionHandler   *handler.SessionHandler
	AdminHandler     *handler.AdminHandler
	TokenManager     *security.SessionTokenManager
	CORSOrigins      []string
	APIRateLimitRPM  int
	AuthRateLimitRPM int
	GlobalLimiter    func(http.Handler) http.Handler
	AuthLimiter      func(http.Handler) http.Handler
	Readiness        func(ctx context.Context) error
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalLimiter != nil {
		r.Use(dep.GlobalLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	authLimiter := dep.AuthLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiterWith(
			middleware.NewLocalFixedWindowLimiter(),
			dep.AuthRateLimitRPM, time.Minute,
			middleware.FailClosed, "device_auth",
			middleware.FingerprintOrIPKey,
		).Middleware()
	}
	sessionAuth := middleware.SessionAuth(dep.TokenManager)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		if err := dep.Readiness(r.Context()); err != nil {
			response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]string{"error": err.Error()})
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(authLimiter).Post("/devices/authenticate", dep.DeviceHandler.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)

			r.With(middleware.RequirePermission(policy.PermManagerFunction)).Get("/devices", dep.DeviceHandler.List)
			r.With(middleware.RequirePermission(policy.PermManagerFunction)).Get("/devices/{id}", dep.DeviceHandler.Get)
			r.With(middleware.RequirePermission(policy.PermManagerFunction)).Get("/devices/fingerprint/{fingerprint}", dep.DeviceHandler.GetByFingerprint)

			r.With(middleware.RequirePermission(policy.PermManagerFunction)).Get("/sessions", dep.SessionHandler.List)
			r.With(middleware.RequirePermission(policy.PermBaseAccess)).Get("/sessions/{session_id}", dep.SessionHandler.Get)
			r.With(middleware.RequirePermission(policy.PermBaseAccess)).Post("/sessions/{session_id}/heartbeat", dep.SessionHandler.Heartbeat)
			r.With(middleware.RequirePermission(policy.PermBaseAccess)).Post("/sessions/{session_id}/validate", dep.SessionHandler.Validate)
			r.With(middleware.RequirePermission(policy.PermBaseAccess)).Delete("/sessions/{session_id}", dep.SessionHandler.Terminate)

			r.Route("/admin/devices/{id}", func(r chi.Router) {
				r.Use(middleware.RequirePermission(policy.PermManagerFunction))
				r.Post("/approve", dep.AdminHandler.Approve)
				r.Post("/reject", dep.AdminHandler.Reject)
				r.Post("/suspend", dep.AdminHandler.Suspend)
				r.Post("/reactivate", dep.AdminHandler.Reactivate)
				r.Post("/maintenance", dep.AdminHandler.SetMaintenance)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}

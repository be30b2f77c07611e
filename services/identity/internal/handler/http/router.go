package http

import (
	"log/slog"
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepak1410/task-management/pkg/health"
	"github.com/deepak1410/task-management/pkg/identity"
	"github.com/deepak1410/task-management/pkg/middleware"
)

// NewRouter creates a chi router with all identity service routes registered.
// The guard accepts gateway-annotated requests and falls back to full bearer
// verification for direct callers.
func NewRouter(
	authHandler *AuthHandler,
	userHandler *UserHandler,
	guard *middleware.AuthGuard,
	healthHandler *health.Handler,
	logger *slog.Logger,
) stdhttp.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("identity"))
	r.Use(middleware.Tracing("identity"))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Unauthenticated service-to-service lookup used by the edge pipeline
	// and backend guards to resolve token subjects.
	r.Get("/internal/users/username/{username}", userHandler.GetByUsername)

	// Auth surface (public).
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh-token", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.Post("/forgot-pwd", authHandler.ForgotPassword)
		r.Post("/reset-pwd", authHandler.ResetPassword)
		r.Get("/verify-email", authHandler.VerifyEmail)
	})

	// User surface (guarded).
	r.Route("/api/users", func(r chi.Router) {
		r.Use(guard.Handler())

		r.Get("/me", userHandler.GetMe)
		r.Put("/me", userHandler.UpdateMe)
		r.Get("/username/{username}", userHandler.GetByUsername)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(identity.RoleAdmin))

			r.Get("/", userHandler.List)
			r.Patch("/{id}/role", userHandler.UpdateRole)
		})

		r.Get("/{id}", userHandler.GetByID)
	})

	return r
}

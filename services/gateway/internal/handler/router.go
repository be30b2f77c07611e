package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepak1410/task-management/pkg/health"
	pkgmiddleware "github.com/deepak1410/task-management/pkg/middleware"
	"github.com/deepak1410/task-management/services/gateway/internal/config"
	gwmiddleware "github.com/deepak1410/task-management/services/gateway/internal/middleware"
	"github.com/deepak1410/task-management/services/gateway/internal/proxy"
)

// NewRouter creates the gateway router. Every proxied route passes the rate
// limiter first and the edge authentication pipeline second, so whitelisted
// paths stay rate limited even though they skip authentication.
func NewRouter(
	cfg *config.Config,
	sp *proxy.ServiceProxy,
	limiter *gwmiddleware.RateLimiter,
	edgeAuth *gwmiddleware.EdgeAuth,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmiddleware.CORS(pkgmiddleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		ExposedHeaders:   []string{"X-Correlation-ID"},
		MaxAge:           cfg.CORSMaxAge,
		AllowCredentials: true,
		Environment:      cfg.Environment,
	}))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.PrometheusMetrics("gateway"))
	r.Use(pkgmiddleware.Tracing("gateway"))
	r.Use(pkgmiddleware.RequestLogger(logger))

	// Health check endpoints (no auth required).
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	// Metrics endpoint with IP allowlist protection.
	metricsHandler := metricsIPAllowlist(cfg.MetricsAllowedCIDRs, logger)(promhttp.Handler())
	r.Get("/metrics", metricsHandler.ServeHTTP)

	pkgmiddleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	r.Route("/api", func(r chi.Router) {
		// The limiter mounts outside the auth pipeline: a flood of
		// tokenless requests still drains the bucket and sees 429.

		// Identity service: authentication surface plus user profiles.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware("identity"))
			r.Use(edgeAuth.Handler())
			r.Handle("/auth", sp.Handler("identity"))
			r.Handle("/auth/*", sp.Handler("identity"))
			r.Handle("/users", sp.Handler("identity"))
			r.Handle("/users/*", sp.Handler("identity"))
		})

		// Task service.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware("tasks"))
			r.Use(edgeAuth.Handler())
			r.Handle("/tasks", sp.Handler("task"))
			r.Handle("/tasks/*", sp.Handler("task"))
		})
	})

	return r
}

// metricsIPAllowlist restricts access to requests from IPs within the
// configured CIDR ranges.
func metricsIPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("invalid metrics CIDR, skipping", slog.String("cidr", cidr), slog.String("error", err.Error()))
			continue
		}
		nets = append(nets, ipNet)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			ip := net.ParseIP(host)

			allowed := false
			if ip != nil {
				for _, n := range nets {
					if n.Contains(ip) {
						allowed = true
						break
					}
				}
			}

			if !allowed {
				logger.Warn("metrics access denied", slog.String("ip", host))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "FORBIDDEN",
						"message": "metrics endpoint is restricted",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

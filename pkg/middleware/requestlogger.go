package middleware

import (
	"log/slog"
	"net/http"

	"github.com/deepak1410/task-management/pkg/logger"
)

// RequestLogger returns middleware that builds a request-scoped logger
// enriched with correlation_id, username, trace_id, and span_id, then stores
// it in context via logger.NewContext. Downstream handlers retrieve it with
// logger.FromContext(ctx).
//
// Mount AFTER RequestLogging (which sets correlation_id) and Tracing (which
// sets the OpenTelemetry span context), and after the auth guard when the
// username should be attached.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Prefer the guard's principal; fall back to the gateway's
			// annotation header for services that mount this first.
			username := ""
			if principal := PrincipalFromContext(ctx); principal != nil {
				username = principal.Username
			}
			if username == "" {
				username = r.Header.Get(HeaderUserID)
			}
			if username != "" {
				ctx = logger.WithUsername(ctx, username)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

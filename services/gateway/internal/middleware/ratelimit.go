package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/pkg/httputil"
	"github.com/deepak1410/task-management/services/gateway/internal/config"
)

var rateLimitRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_rate_limit_rejections_total",
		Help: "Requests rejected by the per-route rate limiter",
	},
	[]string{"route"},
)

// bucket tracks a token bucket per (route, client IP) pair.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-client token buckets, keyed by route and client
// IP. Each route gets the default replenish rate and burst capacity unless an
// override exists for it. Stale buckets are evicted in the background.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	defaults  config.RouteRate
	overrides map[string]config.RouteRate
	ttl       time.Duration
	nowFunc   func() time.Time // injectable clock for testing
	logger    *slog.Logger
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine.
func NewRateLimiter(defaults config.RouteRate, overrides map[string]config.RouteRate, logger *slog.Logger) *RateLimiter {
	const cleanupInterval = 3 * time.Minute
	l := &RateLimiter{
		buckets:   make(map[string]*bucket),
		defaults:  defaults,
		overrides: overrides,
		ttl:       cleanupInterval,
		nowFunc:   time.Now,
		logger:    logger,
	}
	go l.cleanupLoop()
	return l
}

// rateFor returns the bucket parameters for a route.
func (l *RateLimiter) rateFor(routeID string) config.RouteRate {
	if override, ok := l.overrides[routeID]; ok {
		return override
	}
	return l.defaults
}

// allow consumes one token from the (route, ip) bucket, creating it on first
// sight. A fresh bucket starts full, so a new client gets the whole burst.
func (l *RateLimiter) allow(routeID, ip string) bool {
	key := routeID + "|" + ip
	now := l.nowFunc()

	l.mu.Lock()
	b, exists := l.buckets[key]
	if !exists {
		rr := l.rateFor(routeID)
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(rr.ReplenishRate), rr.Burst)}
	}
	b.lastSeen = now
	l.buckets[key] = b
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Middleware returns the rate limiting middleware for the given route. The
// whitelist never bypasses this; unauthenticated endpoints are rate limited
// like any other.
func (l *RateLimiter) Middleware(routeID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.allow(routeID, ip) {
				rateLimitRejections.WithLabelValues(routeID).Inc()
				l.logger.Warn("rate limit exceeded",
					slog.String("route", routeID),
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteError(w, r, apperrors.RateLimited(), l.logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()
	for range ticker.C {
		l.cleanup()
	}
}

// cleanup evicts buckets not seen within the TTL.
func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
}

// len returns the number of tracked buckets (used in tests).
func (l *RateLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// clientIP extracts the client IP address from the request. It checks
// X-Forwarded-For and X-Real-IP before falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

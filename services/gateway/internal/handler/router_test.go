package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/pkg/health"
	"github.com/deepak1410/task-management/pkg/identity"
	"github.com/deepak1410/task-management/pkg/revocation"
	"github.com/deepak1410/task-management/pkg/token"
	"github.com/deepak1410/task-management/services/gateway/internal/config"
	gwmiddleware "github.com/deepak1410/task-management/services/gateway/internal/middleware"
	"github.com/deepak1410/task-management/services/gateway/internal/proxy"
)

type stubDirectory struct {
	identities map[string]*identity.Identity
}

func (d *stubDirectory) GetByUsername(_ context.Context, username string) (*identity.Identity, error) {
	id, ok := d.identities[username]
	if !ok {
		return nil, apperrors.NotFound("user", username)
	}
	return id, nil
}

type routerFixture struct {
	router  http.Handler
	tokens  *token.Service
	backend *httptest.Server
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-User", r.Header.Get("X-User-Id"))
		w.Header().Set("X-Seen-Correlation", r.Header.Get("X-Correlation-ID"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	}))
	t.Cleanup(backend.Close)

	cfg := &config.Config{
		Environment:         "development",
		IdentityServiceURL:  backend.URL,
		TaskServiceURL:      backend.URL,
		WhitelistPatterns:   []string{"/api/auth/**", "/health/**", "/metrics"},
		RateLimitReplenish:  5,
		RateLimitBurst:      10,
		CORSAllowedOrigins:  []string{"*"},
		CORSMaxAge:          3600,
		MetricsAllowedCIDRs: []string{"127.0.0.0/8"},
		PprofAllowedCIDRs:   []string{"127.0.0.0/8"},
	}

	tokens := token.NewService("router-test-secret-with-enough-length", 15*time.Minute, 24*time.Hour)
	dir := &stubDirectory{identities: map[string]*identity.Identity{
		"alice": {ID: "u-1", Username: "alice", Email: "alice@example.com", Role: identity.RoleUser},
	}}

	limiter := gwmiddleware.NewRateLimiter(
		config.RouteRate{ReplenishRate: cfg.RateLimitReplenish, Burst: cfg.RateLimitBurst},
		nil,
		logger,
	)
	edgeAuth := gwmiddleware.NewEdgeAuth(tokens, revocation.NewMemoryStore(), dir, cfg.WhitelistPatterns, time.Second, logger)

	sp := proxy.NewServiceProxy(cfg, logger)
	router := NewRouter(cfg, sp, limiter, edgeAuth, health.NewHandler(), logger)

	return &routerFixture{router: router, tokens: tokens, backend: backend}
}

func (f *routerFixture) get(path, authToken, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.get("/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, f.get("/health/ready", "", "").Code)
}

func TestRouter_WhitelistedAuthRouteProxiedWithoutToken(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRouteRequiresToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.get("/api/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ProtectedRouteAdmitsValidToken(t *testing.T) {
	f := newRouterFixture(t)

	accessToken, err := f.tokens.IssueAccessToken("alice")
	require.NoError(t, err)

	rec := f.get("/api/tasks", accessToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", rec.Header().Get("X-Seen-User"), "backend sees the resolved identity")
}

func TestRouter_WhitelistedRouteStillRateLimited(t *testing.T) {
	f := newRouterFixture(t)

	var last int
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.50:1000"
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last, "auth routes skip authentication, not admission control")
}

func TestRouter_GeneratedCorrelationIDReachesBackend(t *testing.T) {
	f := newRouterFixture(t)

	accessToken, err := f.tokens.IssueAccessToken("alice")
	require.NoError(t, err)

	// No X-Correlation-ID on the inbound request: the gateway mints one
	// and the backend must receive the same value the client is told.
	rec := f.get("/api/tasks", accessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	minted := rec.Header().Get("X-Correlation-ID")
	require.NotEmpty(t, minted)
	assert.Equal(t, minted, rec.Header().Get("X-Seen-Correlation"))
}

func TestRouter_ClientCorrelationIDPropagated(t *testing.T) {
	f := newRouterFixture(t)

	accessToken, err := f.tokens.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Correlation-ID", "corr-from-client")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "corr-from-client", rec.Header().Get("X-Seen-Correlation"))
}

func TestRouter_RateCheckRunsBeforeAuth(t *testing.T) {
	f := newRouterFixture(t)

	// Tokenless requests to a protected route must still drain the
	// bucket: once the burst is spent the limiter answers 429 before the
	// auth pipeline gets a chance to answer 401.
	codes := make(map[int]int)
	for i := 0; i < 20; i++ {
		rec := f.get("/api/tasks", "", "192.0.2.77:1000")
		codes[rec.Code]++
	}

	// The burst passes the limiter and fails auth; everything past it is
	// rejected by the limiter. Allow a token of slack for replenishment.
	assert.GreaterOrEqual(t, codes[http.StatusUnauthorized], 10)
	assert.GreaterOrEqual(t, codes[http.StatusTooManyRequests], 9)
}

func TestRouter_MetricsAllowlist(t *testing.T) {
	f := newRouterFixture(t)

	ok := f.get("/metrics", "", "127.0.0.1:9999")
	assert.Equal(t, http.StatusOK, ok.Code)

	denied := f.get("/metrics", "", "203.0.113.5:9999")
	assert.Equal(t, http.StatusForbidden, denied.Code)
}

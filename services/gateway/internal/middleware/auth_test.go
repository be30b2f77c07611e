package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/pkg/identity"
	pkgmiddleware "github.com/deepak1410/task-management/pkg/middleware"
	"github.com/deepak1410/task-management/pkg/revocation"
	"github.com/deepak1410/task-management/pkg/token"
)

type stubDirectory struct {
	identities map[string]*identity.Identity
	err        error
	delay      time.Duration
}

func (d *stubDirectory) GetByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	id, ok := d.identities[username]
	if !ok {
		return nil, apperrors.NotFound("user", username)
	}
	return id, nil
}

type brokenStore struct{}

func (brokenStore) Revoke(context.Context, string, time.Duration) error {
	return errors.New("redis down")
}

func (brokenStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

const edgeTestSecret = "edge-test-secret-with-enough-length!"

func newEdge(store revocation.Store, dir identity.Directory) (*EdgeAuth, *token.Service) {
	tokens := token.NewService(edgeTestSecret, 15*time.Minute, 24*time.Hour)
	whitelist := []string{"/api/auth/**", "/health/**", "/metrics"}
	return NewEdgeAuth(tokens, store, dir, whitelist, time.Second, testLogger()), tokens
}

// annotationEcho captures the identity headers the pipeline injects.
func annotationEcho() (http.Handler, *http.Header) {
	captured := &http.Header{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})
	return handler, captured
}

func errEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code, envelope.Error.Message
}

func aliceDirectory() *stubDirectory {
	return &stubDirectory{identities: map[string]*identity.Identity{
		"alice": {ID: "u-1", Username: "alice", Email: "alice@example.com", Role: identity.RoleUser},
	}}
}

func TestEdgeAuth_AdmitsValidTokenAndAnnotates(t *testing.T) {
	edge, tokens := newEdge(revocation.NewMemoryStore(), aliceDirectory())
	handler, captured := annotationEcho()

	accessToken, err := tokens.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", captured.Get(pkgmiddleware.HeaderUserID))
	assert.Equal(t, "alice@example.com", captured.Get(pkgmiddleware.HeaderUserEmail))
	assert.Equal(t, "USER", captured.Get(pkgmiddleware.HeaderUserRoles))
}

func TestEdgeAuth_StripsSpoofedIdentityHeaders(t *testing.T) {
	edge, _ := newEdge(revocation.NewMemoryStore(), aliceDirectory())
	handler, captured := annotationEcho()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set(pkgmiddleware.HeaderUserID, "u-evil")
	req.Header.Set(pkgmiddleware.HeaderUserRoles, "ADMIN")
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "whitelisted path passes without a token")
	assert.Empty(t, captured.Get(pkgmiddleware.HeaderUserID))
	assert.Empty(t, captured.Get(pkgmiddleware.HeaderUserRoles))
}

func TestEdgeAuth_WhitelistMatching(t *testing.T) {
	edge, _ := newEdge(revocation.NewMemoryStore(), aliceDirectory())

	assert.True(t, edge.isWhitelisted("/api/auth/login"))
	assert.True(t, edge.isWhitelisted("/api/auth"))
	assert.True(t, edge.isWhitelisted("/health/ready"))
	assert.True(t, edge.isWhitelisted("/metrics"))
	assert.False(t, edge.isWhitelisted("/api/authz"))
	assert.False(t, edge.isWhitelisted("/api/tasks"))
	assert.False(t, edge.isWhitelisted("/metrics/extra"))
}

func TestEdgeAuth_OptionsAlwaysPass(t *testing.T) {
	edge, _ := newEdge(revocation.NewMemoryStore(), aliceDirectory())
	handler, _ := annotationEcho()

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEdgeAuth_MissingToken(t *testing.T) {
	edge, _ := newEdge(revocation.NewMemoryStore(), aliceDirectory())
	handler, _ := annotationEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errEnvelope(t, rec)
	assert.Equal(t, "MISSING_CREDENTIAL", code)
	assert.Equal(t, "Missing authorization token", message)
}

func TestEdgeAuth_RevokedToken(t *testing.T) {
	store := revocation.NewMemoryStore()
	edge, tokens := newEdge(store, aliceDirectory())
	handler, _ := annotationEcho()

	accessToken, err := tokens.IssueAccessToken("alice")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(context.Background(), accessToken, time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errEnvelope(t, rec)
	assert.Equal(t, "REVOKED_CREDENTIAL", code)
	assert.Equal(t, "Token revoked", message)
}

func TestEdgeAuth_RevocationStoreDownFailsClosed(t *testing.T) {
	edge, tokens := newEdge(brokenStore{}, aliceDirectory())
	handler, _ := annotationEcho()

	accessToken, err := tokens.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)

	// A store outage is a service failure, not a revoked token.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errEnvelope(t, rec)
	assert.Equal(t, "IDENTITY_RESOLUTION_FAILED", code)
	assert.Equal(t, "Authentication service unavailable", message)
}

func TestEdgeAuth_ForgedToken(t *testing.T) {
	edge, _ := newEdge(revocation.NewMemoryStore(), aliceDirectory())
	handler, _ := annotationEcho()

	other := token.NewService("some-other-secret-used-by-an-attacker", 15*time.Minute, 24*time.Hour)
	forged, err := other.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errEnvelope(t, rec)
	assert.Equal(t, "INVALID_CREDENTIAL", code)
	assert.Equal(t, "Invalid token", message)
}

func TestEdgeAuth_DirectoryUnavailable(t *testing.T) {
	edge, tokens := newEdge(revocation.NewMemoryStore(), &stubDirectory{err: errors.New("connect refused")})
	handler, _ := annotationEcho()

	accessToken, err := tokens.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errEnvelope(t, rec)
	assert.Equal(t, "IDENTITY_RESOLUTION_FAILED", code)
	assert.Equal(t, "Authentication service unavailable", message)
}

func TestEdgeAuth_DirectoryTimeoutRejects(t *testing.T) {
	slow := aliceDirectory()
	slow.delay = 5 * time.Second
	tokens := token.NewService(edgeTestSecret, 15*time.Minute, 24*time.Hour)
	edge := NewEdgeAuth(tokens, revocation.NewMemoryStore(), slow, nil, 50*time.Millisecond, testLogger())
	handler, _ := annotationEcho()

	accessToken, err := tokens.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	start := time.Now()
	edge.Handler()(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Less(t, time.Since(start), time.Second, "lookup must be cut off at the timeout")
}

func TestEdgeAuth_ExpiredToken(t *testing.T) {
	dir := aliceDirectory()
	expired := token.NewService(edgeTestSecret, -time.Minute, 24*time.Hour)
	edge := NewEdgeAuth(expired, revocation.NewMemoryStore(), dir, nil, time.Second, testLogger())
	handler, _ := annotationEcho()

	accessToken, err := expired.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	edge.Handler()(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errEnvelope(t, rec)
	assert.Equal(t, "UNAUTHORIZED", code)
	assert.Equal(t, "Invalid token for user", message)
}

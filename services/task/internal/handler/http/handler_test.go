package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/pkg/health"
	"github.com/deepak1410/task-management/pkg/httputil"
	"github.com/deepak1410/task-management/pkg/identity"
	"github.com/deepak1410/task-management/pkg/middleware"
	"github.com/deepak1410/task-management/pkg/revocation"
	"github.com/deepak1410/task-management/pkg/token"
	"github.com/deepak1410/task-management/services/task/internal/domain"
	"github.com/deepak1410/task-management/services/task/internal/service"
)

type mockTaskRepo struct {
	mock.Mock
}

func (m *mockTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *mockTaskRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Task, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *mockTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// staticDirectory resolves a single known username, standing in for the
// identity service on the direct-bearer path.
type staticDirectory struct {
	identity *identity.Identity
}

func (d *staticDirectory) GetByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	if d.identity != nil && d.identity.Username == username {
		return d.identity, nil
	}
	return nil, apperrors.NotFound("user", username)
}

type routerFixture struct {
	router      http.Handler
	tasks       *mockTaskRepo
	tokens      *token.Service
	revocations *revocation.MemoryStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	tasks := new(mockTaskRepo)
	tokens := token.NewService("test-secret-key-for-testing", 15*time.Minute, 7*24*time.Hour)
	revocations := revocation.NewMemoryStore()

	svc := service.NewTaskService(tasks, logger)
	handler := NewTaskHandler(svc, logger)

	guard := &middleware.AuthGuard{
		Tokens:      tokens,
		Revocations: revocations,
		Directory: &staticDirectory{identity: &identity.Identity{
			ID:       "u-1",
			Username: "alice",
			Email:    "alice@example.com",
			Role:     identity.RoleUser,
		}},
		Logger: logger,
	}

	router := NewRouter(handler, guard, health.NewHandler(), logger)

	return &routerFixture{
		router:      router,
		tasks:       tasks,
		tokens:      tokens,
		revocations: revocations,
	}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func asGateway(req *http.Request) *http.Request {
	req.Header.Set(middleware.HeaderUserID, "u-1")
	req.Header.Set(middleware.HeaderUserEmail, "alice@example.com")
	req.Header.Set(middleware.HeaderUserRoles, identity.RoleUser)
	return req
}

func storedTask() *domain.Task {
	now := time.Now().UTC()
	return &domain.Task{
		ID:        "t-1",
		OwnerID:   "u-1",
		Title:     "Write report",
		Status:    domain.StatusTodo,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateTask_Created(t *testing.T) {
	f := newRouterFixture(t)

	f.tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).Return(nil)

	req := asGateway(httptest.NewRequest(http.MethodPost, "/api/tasks", jsonBody(t, map[string]string{
		"title":       "Write report",
		"description": "Quarterly numbers",
	})))
	rec := f.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Data)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "u-1", data["ownerId"])
	assert.Equal(t, domain.StatusTodo, data["status"])
}

func TestCreateTask_ValidationError(t *testing.T) {
	f := newRouterFixture(t)

	req := asGateway(httptest.NewRequest(http.MethodPost, "/api/tasks", jsonBody(t, map[string]string{
		"description": "no title",
	})))
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "Title")
	f.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateTask_NoCredentials(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", jsonBody(t, map[string]string{
		"title": "Write report",
	}))
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MISSING_CREDENTIAL", resp.Error.Code)
}

func TestListTasks_GatewayHeaders(t *testing.T) {
	f := newRouterFixture(t)

	f.tasks.On("ListByOwner", mock.Anything, "u-1", 20, 0).Return([]domain.Task{*storedTask()}, nil)

	req := asGateway(httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Data)
	assert.Len(t, resp.Data.([]any), 1)
}

func TestListTasks_DirectBearer(t *testing.T) {
	f := newRouterFixture(t)

	f.tasks.On("ListByOwner", mock.Anything, "u-1", 20, 0).Return([]domain.Task{}, nil)

	access, err := f.tokens.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.tasks.AssertExpectations(t)
}

func TestListTasks_RevokedBearer(t *testing.T) {
	f := newRouterFixture(t)

	access, err := f.tokens.IssueAccessToken("alice")
	require.NoError(t, err)
	require.NoError(t, f.revocations.Revoke(context.Background(), access, time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "REVOKED_CREDENTIAL", resp.Error.Code)
}

func TestGetTask_OtherOwnerHidden(t *testing.T) {
	f := newRouterFixture(t)

	foreign := storedTask()
	foreign.OwnerID = "u-2"
	f.tasks.On("GetByID", mock.Anything, "t-1").Return(foreign, nil)

	req := asGateway(httptest.NewRequest(http.MethodGet, "/api/tasks/t-1", nil))
	rec := f.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTask_Status(t *testing.T) {
	f := newRouterFixture(t)

	f.tasks.On("GetByID", mock.Anything, "t-1").Return(storedTask(), nil)
	f.tasks.On("Update", mock.Anything, mock.AnythingOfType("*domain.Task")).Return(nil)

	req := asGateway(httptest.NewRequest(http.MethodPut, "/api/tasks/t-1", jsonBody(t, map[string]string{
		"status": domain.StatusDone,
	})))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Data)
	assert.Equal(t, domain.StatusDone, resp.Data.(map[string]any)["status"])
}

func TestUpdateTask_InvalidStatus(t *testing.T) {
	f := newRouterFixture(t)

	req := asGateway(httptest.NewRequest(http.MethodPut, "/api/tasks/t-1", jsonBody(t, map[string]string{
		"status": "SHIPPED",
	})))
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.tasks.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDeleteTask_NoContent(t *testing.T) {
	f := newRouterFixture(t)

	f.tasks.On("GetByID", mock.Anything, "t-1").Return(storedTask(), nil)
	f.tasks.On("Delete", mock.Anything, "t-1").Return(nil)

	req := asGateway(httptest.NewRequest(http.MethodDelete, "/api/tasks/t-1", nil))
	rec := f.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.tasks.AssertExpectations(t)
}

func TestHealthLive(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

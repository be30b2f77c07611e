package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/services/task/internal/domain"
)

type mockTaskRepository struct {
	mock.Mock
}

func (m *mockTaskRepository) Create(ctx context.Context, t *domain.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *mockTaskRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Task, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *mockTaskRepository) Update(ctx context.Context, t *domain.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestService() (*TaskService, *mockTaskRepository) {
	repo := new(mockTaskRepository)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewTaskService(repo, logger), repo
}

func ownedTask() *domain.Task {
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

func TestCreate_Success(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*domain.Task")).Return(nil)

	task, err := svc.Create(ctx, "u-1", CreateInput{Title: "Write report"})

	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "u-1", task.OwnerID)
	assert.Equal(t, domain.StatusTodo, task.Status)
	repo.AssertExpectations(t)
}

func TestCreate_MissingTitle(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Create(context.Background(), "u-1", CreateInput{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGet_OtherOwnerHidden(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.On("GetByID", ctx, "t-1").Return(ownedTask(), nil)

	_, err := svc.Get(ctx, "u-2", "t-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "foreign tasks must look like they do not exist")
}

func TestGet_Owner(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.On("GetByID", ctx, "t-1").Return(ownedTask(), nil)

	task, err := svc.Get(ctx, "u-1", "t-1")

	require.NoError(t, err)
	assert.Equal(t, "t-1", task.ID)
}

func TestListMine_ClampsLimit(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.On("ListByOwner", ctx, "u-1", maxListLimit, 0).Return([]domain.Task{}, nil)

	_, err := svc.ListMine(ctx, "u-1", 1000, -1)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUpdate_Status(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	task := ownedTask()

	repo.On("GetByID", ctx, "t-1").Return(task, nil)
	repo.On("Update", ctx, task).Return(nil)

	status := domain.StatusDone
	got, err := svc.Update(ctx, "u-1", "t-1", UpdateInput{Status: &status})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
}

func TestUpdate_InvalidStatus(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.On("GetByID", ctx, "t-1").Return(ownedTask(), nil)

	status := "SHIPPED"
	_, err := svc.Update(ctx, "u-1", "t-1", UpdateInput{Status: &status})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDelete_OtherOwnerHidden(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.On("GetByID", ctx, "t-1").Return(ownedTask(), nil)

	err := svc.Delete(ctx, "u-2", "t-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDelete_Owner(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.On("GetByID", ctx, "t-1").Return(ownedTask(), nil)
	repo.On("Delete", ctx, "t-1").Return(nil)

	require.NoError(t, svc.Delete(ctx, "u-1", "t-1"))
	repo.AssertExpectations(t)
}

// Package service implements the task service's business logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/services/task/internal/domain"
	"github.com/deepak1410/task-management/services/task/internal/repository"
)

// Listing bounds.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// TaskService implements task CRUD with per-owner isolation. Tasks that
// exist but belong to someone else surface as not found, so callers cannot
// probe for other users' task IDs.
type TaskService struct {
	tasks  repository.TaskRepository
	logger *slog.Logger
}

// NewTaskService creates a new task service.
func NewTaskService(tasks repository.TaskRepository, logger *slog.Logger) *TaskService {
	return &TaskService{tasks: tasks, logger: logger}
}

// CreateInput holds the parameters for creating a task.
type CreateInput struct {
	Title       string
	Description string
	DueDate     *time.Time
}

// UpdateInput holds the parameters for updating a task.
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *string
	DueDate     *time.Time
}

// Create creates a new task owned by ownerID.
func (s *TaskService) Create(ctx context.Context, ownerID string, input CreateInput) (*domain.Task, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.StatusTodo,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.InfoContext(ctx, "task created",
		slog.String("task_id", task.ID),
		slog.String("owner_id", ownerID),
	)

	return task, nil
}

// Get retrieves a task owned by ownerID.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task.OwnerID != ownerID {
		return nil, apperrors.NotFound("task", taskID)
	}
	return task, nil
}

// ListMine returns the owner's tasks, newest first.
func (s *TaskService) ListMine(ctx context.Context, ownerID string, limit, offset int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tasks, err := s.tasks.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Update modifies a task owned by ownerID.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID string, input UpdateInput) (*domain.Task, error) {
	task, err := s.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperrors.InvalidInput("title must not be empty")
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		if !domain.ValidStatus(*input.Status) {
			return nil, apperrors.InvalidInput("status must be one of: TODO IN_PROGRESS DONE")
		}
		task.Status = *input.Status
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.logger.InfoContext(ctx, "task updated",
		slog.String("task_id", task.ID),
		slog.String("owner_id", ownerID),
	)

	return task, nil
}

// Delete removes a task owned by ownerID.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	if _, err := s.Get(ctx, ownerID, taskID); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	s.logger.InfoContext(ctx, "task deleted",
		slog.String("task_id", taskID),
		slog.String("owner_id", ownerID),
	)

	return nil
}

// Package repository defines the persistence interfaces for the task service.
package repository

import (
	"context"

	"github.com/deepak1410/task-management/services/task/internal/domain"
)

// TaskRepository persists tasks.
type TaskRepository interface {
	// Create inserts a new task.
	Create(ctx context.Context, t *domain.Task) error

	// GetByID retrieves a task by ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.Task, error)

	// ListByOwner returns the owner's tasks ordered by creation time,
	// newest first.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Task, error)

	// Update persists changes to an existing task.
	Update(ctx context.Context, t *domain.Task) error

	// Delete removes a task by ID. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
}

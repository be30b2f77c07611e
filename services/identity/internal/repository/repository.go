// Package repository defines the persistence interfaces for the identity
// service. Implementations live in the postgres subpackage.
package repository

import (
	"context"
	"time"

	"github.com/deepak1410/task-management/services/identity/internal/domain"
)

// UserRepository persists directory accounts.
type UserRepository interface {
	// Create inserts a new user. Returns ErrAlreadyExists when the
	// username or email is taken.
	Create(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByUsername retrieves a user by username. Returns ErrNotFound when absent.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by email address. Returns ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update persists changes to an existing user.
	Update(ctx context.Context, u *domain.User) error

	// List returns users ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
}

// RefreshTokenRepository persists refresh token hashes.
type RefreshTokenRepository interface {
	// Save stores a new refresh token hash with its expiry.
	Save(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// FindValid retrieves an unrevoked, unexpired token record by hash.
	// Returns ErrNotFound when no usable record exists.
	FindValid(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke marks the token with the given hash as revoked.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAllForUser revokes every active token belonging to the user.
	RevokeAllForUser(ctx context.Context, userID string) error
}

// EmailTokenRepository persists single-use email verification and password
// reset tokens.
type EmailTokenRepository interface {
	// Create stores a new email token.
	Create(ctx context.Context, et *domain.EmailToken) error

	// GetByToken retrieves a token record by its token string.
	// Returns ErrNotFound when absent.
	GetByToken(ctx context.Context, token string) (*domain.EmailToken, error)

	// MarkUsed atomically claims the token so it cannot be redeemed
	// again; an already-claimed or missing token yields ErrNotFound.
	MarkUsed(ctx context.Context, id string) error
}

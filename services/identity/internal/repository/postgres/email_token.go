package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deepak1410/task-management/pkg/database"
	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/services/identity/internal/domain"
)

// EmailTokenRepository implements repository.EmailTokenRepository using PostgreSQL.
type EmailTokenRepository struct {
	pool database.DBTX
}

// NewEmailTokenRepository creates a new PostgreSQL-backed email token repository.
func NewEmailTokenRepository(pool database.DBTX) *EmailTokenRepository {
	return &EmailTokenRepository{pool: pool}
}

// Create stores a new email token.
func (r *EmailTokenRepository) Create(ctx context.Context, et *domain.EmailToken) error {
	query := `
		INSERT INTO email_tokens (id, user_id, token, purpose, used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		et.ID,
		et.UserID,
		et.Token,
		et.Purpose,
		et.Used,
		et.ExpiresAt,
		et.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert email token: %w", err)
	}

	return nil
}

// GetByToken retrieves an email token record by its token string.
func (r *EmailTokenRepository) GetByToken(ctx context.Context, token string) (*domain.EmailToken, error) {
	query := `
		SELECT id, user_id, token, purpose, used, expires_at, created_at
		FROM email_tokens
		WHERE token = $1`

	var et domain.EmailToken
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&et.ID,
		&et.UserID,
		&et.Token,
		&et.Purpose,
		&et.Used,
		&et.ExpiresAt,
		&et.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan email token: %w", err)
	}

	return &et, nil
}

// MarkUsed claims the token. The used guard makes the claim atomic: of two
// concurrent consumers exactly one sees a row updated, the other gets
// not-found.
func (r *EmailTokenRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE email_tokens SET used = TRUE WHERE id = $1 AND used = FALSE`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark email token used: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("email token", id)
	}

	return nil
}

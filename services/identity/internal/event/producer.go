// Package event publishes identity domain events to Kafka. The notification
// collaborator consumes them to deliver verification and reset emails.
package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/deepak1410/task-management/pkg/kafka"
	"github.com/deepak1410/task-management/services/identity/internal/domain"
)

// Kafka topic constants for identity domain events.
const (
	TopicUserRegistered             = "taskmgmt.user.registered"
	TopicUserPasswordResetRequested = "taskmgmt.user.password-reset-requested"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from the identity service.
const SourceIdentityService = "identity-service"

// UserRegisteredData is the payload for a user.registered event. VerifyToken
// lets the consumer build the email verification link.
type UserRegisteredData struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	VerifyToken string `json:"verify_token"`
}

// PasswordResetRequestedData is the payload for a
// user.password-reset-requested event.
type PasswordResetRequestedData struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User, verifyToken string) error {
	data := UserRegisteredData{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Name:        user.Name,
		VerifyToken: verifyToken,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return nil
}

// PublishPasswordResetRequested publishes a user.password-reset-requested event.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, user *domain.User, resetToken string) error {
	data := PasswordResetRequestedData{
		UserID:     user.ID,
		Email:      user.Email,
		ResetToken: resetToken,
	}

	event, err := pkgkafka.NewEvent(TopicUserPasswordResetRequested, user.ID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create user.password-reset-requested event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserPasswordResetRequested, event); err != nil {
		return fmt.Errorf("publish user.password-reset-requested event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.password-reset-requested event",
		slog.String("user_id", user.ID),
	)

	return nil
}

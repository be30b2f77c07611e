// Package service implements the identity service's business logic.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/pkg/revocation"
	"github.com/deepak1410/task-management/pkg/token"
	"github.com/deepak1410/task-management/services/identity/internal/domain"
	"github.com/deepak1410/task-management/services/identity/internal/event"
	"github.com/deepak1410/task-management/services/identity/internal/repository"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// AuthService implements registration, login, token refresh, logout and the
// email-token flows.
type AuthService struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	emailTokens   repository.EmailTokenRepository
	tokens        *token.Service
	revocations   revocation.Store
	producer      *event.Producer
	fallbackTTL   time.Duration
	logger        *slog.Logger
}

// NewAuthService creates a new auth service. fallbackTTL sizes revocation
// entries for tokens whose expiry cannot be read.
func NewAuthService(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	emailTokens repository.EmailTokenRepository,
	tokens *token.Service,
	revocations revocation.Store,
	producer *event.Producer,
	fallbackTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		emailTokens:   emailTokens,
		tokens:        tokens,
		revocations:   revocations,
		producer:      producer,
		fallbackTTL:   fallbackTTL,
		logger:        logger,
	}
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// LoginInput holds the parameters for login.
type LoginInput struct {
	Username string
	Password string
}

// Register creates a new account with an unverified email address and issues
// a verification token. The account cannot log in until the email is verified.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if input.Username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:            uuid.New().String(),
		Username:      input.Username,
		Email:         input.Email,
		Name:          input.Name,
		PasswordHash:  string(hashedPassword),
		Role:          domain.RoleUser,
		Enabled:       true,
		Locked:        false,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	verifyToken, err := s.issueEmailToken(ctx, user.ID, domain.EmailTokenVerify, domain.VerifyEmailTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue verification token: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user, verifyToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login authenticates a user by username and password. The password is
// compared first; unverified, disabled and locked accounts are rejected
// after it matches, so account state is only disclosed to a caller holding
// valid credentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if input.Username == "" {
		return nil, nil, apperrors.InvalidInput("username is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid username or password")
	}

	if !user.EmailVerified {
		return nil, nil, apperrors.Unauthorized("email address is not verified")
	}
	if !user.Enabled {
		return nil, nil, apperrors.Unauthorized("account is disabled")
	}
	if user.Locked {
		return nil, nil, apperrors.Unauthorized("account is locked")
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is returned unchanged and stays valid until its own
// expiry or revocation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidRefreshCredential()
	}

	username, err := s.tokens.ExtractSubject(refreshToken)
	if err != nil {
		return nil, apperrors.InvalidRefreshCredential()
	}

	if !s.tokens.IsValid(refreshToken, username) {
		return nil, apperrors.InvalidRefreshCredential()
	}

	revoked, err := s.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("check refresh token revocation: %w", err)
	}
	if revoked {
		return nil, apperrors.InvalidRefreshCredential()
	}

	stored, err := s.refreshTokens.FindValid(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperrors.InvalidRefreshCredential()
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.InvalidRefreshCredential()
	}
	if stored.UserID != user.ID {
		return nil, apperrors.InvalidRefreshCredential()
	}

	accessToken, err := s.tokens.IssueAccessToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.logger.InfoContext(ctx, "access token refreshed",
		slog.String("user_id", user.ID),
	)

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout blacklists the presented tokens for their remaining validity and
// revokes the stored refresh token. Either token may be empty; logout is
// idempotent.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	now := time.Now().UTC()

	if accessToken != "" {
		if err := s.blacklist(ctx, accessToken, now); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}

	if refreshToken != "" {
		if err := s.blacklist(ctx, refreshToken, now); err != nil {
			return fmt.Errorf("blacklist refresh token: %w", err)
		}
		if err := s.refreshTokens.Revoke(ctx, hashToken(refreshToken)); err != nil {
			return fmt.Errorf("revoke stored refresh token: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "user logged out")

	return nil
}

// ForgotPassword issues a password reset token and publishes a reset event.
// An unknown email is not revealed to the caller.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset requested for unknown email",
			slog.String("email", email),
		)
		return nil
	}

	resetToken, err := s.issueEmailToken(ctx, user.ID, domain.EmailTokenResetPassword, domain.ResetPasswordTokenTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	// Publish reset event (non-blocking on failure).
	if err := s.producer.PublishPasswordResetRequested(ctx, user, resetToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password-reset-requested event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ResetPassword consumes a reset token, re-hashes the password and revokes
// every refresh token the user holds.
func (s *AuthService) ResetPassword(ctx context.Context, tokenString, newPassword string) error {
	if tokenString == "" {
		return apperrors.InvalidInput("reset token is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	et, err := s.emailTokens.GetByToken(ctx, tokenString)
	if err != nil {
		return apperrors.Unauthorized("invalid or expired reset token")
	}
	if !et.Consumable(domain.EmailTokenResetPassword, time.Now().UTC()) {
		return apperrors.Unauthorized("invalid or expired reset token")
	}

	user, err := s.users.GetByID(ctx, et.UserID)
	if err != nil {
		return fmt.Errorf("get user for password reset: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashedPassword)
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	// Claim the token only once the new password is in place; a failed
	// update must not burn it.
	if err := s.emailTokens.MarkUsed(ctx, et.ID); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	if err := s.refreshTokens.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh tokens after password reset",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// VerifyEmail consumes a verification token and marks the account's email
// address as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, tokenString string) error {
	if tokenString == "" {
		return apperrors.InvalidInput("verification token is required")
	}

	et, err := s.emailTokens.GetByToken(ctx, tokenString)
	if err != nil {
		return apperrors.Unauthorized("invalid or expired verification token")
	}
	if !et.Consumable(domain.EmailTokenVerify, time.Now().UTC()) {
		return apperrors.Unauthorized("invalid or expired verification token")
	}

	user, err := s.users.GetByID(ctx, et.UserID)
	if err != nil {
		return fmt.Errorf("get user for email verification: %w", err)
	}

	user.EmailVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user verification: %w", err)
	}

	if err := s.emailTokens.MarkUsed(ctx, et.ID); err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("user_id", user.ID),
	)

	return nil
}

// --- Helpers ---

// issueTokenPair creates an access/refresh pair and stores the refresh token hash.
func (s *AuthService) issueTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.tokens.IssueAccessToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.tokens.RefreshTTL())
	if err := s.refreshTokens.Save(ctx, user.ID, hashToken(refreshToken), expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// issueEmailToken creates and stores a single-use email token, returning the
// token string.
func (s *AuthService) issueEmailToken(ctx context.Context, userID, purpose string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	et := &domain.EmailToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     uuid.New().String(),
		Purpose:   purpose,
		Used:      false,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.emailTokens.Create(ctx, et); err != nil {
		return "", fmt.Errorf("store email token: %w", err)
	}

	return et.Token, nil
}

// blacklist writes the token to the revocation store for its remaining
// validity, falling back to the configured TTL when the expiry is unreadable.
func (s *AuthService) blacklist(ctx context.Context, tok string, now time.Time) error {
	ttl, err := s.tokens.RemainingTTL(tok, now)
	if err != nil {
		ttl = s.fallbackTTL
	}
	return s.revocations.Revoke(ctx, tok, ttl)
}

// hashToken returns the SHA256 hex digest of the given token string.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}

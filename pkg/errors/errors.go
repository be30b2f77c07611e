package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInternal      = errors.New("internal error")
	ErrConflict      = errors.New("conflict")

	// Authentication failure sentinels. Every one of these is terminal at
	// the boundary where it is detected: the request is rejected, never
	// retried and never admitted on ambiguity.
	ErrMissingCredential        = errors.New("missing credential")
	ErrInvalidCredential        = errors.New("invalid credential")
	ErrExpiredCredential        = errors.New("expired credential")
	ErrRevokedCredential        = errors.New("revoked credential")
	ErrInvalidRefreshCredential = errors.New("invalid refresh credential")
	ErrIdentityResolution       = errors.New("identity resolution failed")
	ErrRateLimited              = errors.New("rate limit exceeded")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a generic 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// MissingCredential creates a 401 error for a request with no bearer token.
func MissingCredential() *AppError {
	return &AppError{
		Code:    "MISSING_CREDENTIAL",
		Message: "Missing authorization token",
		Status:  http.StatusUnauthorized,
		Err:     ErrMissingCredential,
	}
}

// InvalidCredential creates a 401 error for a token that fails signature or
// payload verification.
func InvalidCredential() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIAL",
		Message: "Invalid token",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredential,
	}
}

// ExpiredCredential creates a 401 error for a token past its expiry.
func ExpiredCredential() *AppError {
	return &AppError{
		Code:    "EXPIRED_CREDENTIAL",
		Message: "Token expired",
		Status:  http.StatusUnauthorized,
		Err:     ErrExpiredCredential,
	}
}

// RevokedCredential creates a 401 error for a blacklisted token.
func RevokedCredential() *AppError {
	return &AppError{
		Code:    "REVOKED_CREDENTIAL",
		Message: "Token revoked",
		Status:  http.StatusUnauthorized,
		Err:     ErrRevokedCredential,
	}
}

// InvalidRefreshCredential creates a 401 error for a revoked, expired, or
// unknown refresh token. The client must re-authenticate; there is no
// automatic recovery.
func InvalidRefreshCredential() *AppError {
	return &AppError{
		Code:    "INVALID_REFRESH_CREDENTIAL",
		Message: "Invalid refresh token",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidRefreshCredential,
	}
}

// IdentityResolutionFailed creates a 401 error for an unreachable or timed-out
// user directory. Fail closed: the upstream failure is treated as an
// authentication failure, never bypassed.
func IdentityResolutionFailed(err error) *AppError {
	return &AppError{
		Code:    "IDENTITY_RESOLUTION_FAILED",
		Message: "Authentication service unavailable",
		Status:  http.StatusUnauthorized,
		Err:     fmt.Errorf("%w: %w", ErrIdentityResolution, err),
	}
}

// RateLimited creates a 429 error.
func RateLimited() *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: "Too many requests",
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Internal creates a 500 error. The wrapped error is logged but never
// surfaced to the client.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrExpiredCredential),
		errors.Is(err, ErrRevokedCredential),
		errors.Is(err, ErrInvalidRefreshCredential),
		errors.Is(err, ErrIdentityResolution):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Package token issues and verifies the signed bearer credentials shared by
// the gateway and every backend service. Tokens are stateless HMAC-SHA256
// JWTs carrying only sub, iat, and exp (refresh tokens add a jti so two
// tokens for the same subject issued in the same second remain distinct).
//
// The signing secret is an immutable value handed to the service at
// construction; a process builds exactly one Service and injects it into
// every component that signs or verifies.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
)

// Service signs and verifies access and refresh credentials.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a token service. The secret must be shared by every
// process that verifies credentials issued here.
func NewService(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a new access token for the given username with
// issuedAt=now and expiresAt=now+accessTTL.
func (s *Service) IssueAccessToken(username string) (string, error) {
	return s.sign(username, s.accessTTL, "")
}

// IssueRefreshToken signs a new refresh token for the given username.
// A jti claim guarantees global uniqueness; the store enforces it again
// with a unique constraint.
func (s *Service) IssueRefreshToken(username string) (string, error) {
	return s.sign(username, s.refreshTTL, uuid.New().String())
}

func (s *Service) sign(username string, ttl time.Duration, jti string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        jti,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ExtractSubject verifies the token signature and returns the subject claim.
// Expiry is deliberately not checked here; it is layered by IsValid so the
// pipeline can distinguish a forged token from a stale one.
func (s *Service) ExtractSubject(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", apperrors.ErrInvalidCredential)
	}
	return claims.Subject, nil
}

// IsValid reports whether the token's subject matches the expected username
// and the token has not expired. It does not consult the revocation cache;
// the pipelines layer that check separately.
func (s *Service) IsValid(tokenString, expectedUsername string) bool {
	claims, err := s.parse(tokenString)
	if err != nil {
		return false
	}
	if claims.Subject != expectedUsername {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.After(time.Now().UTC())
}

// RemainingTTL returns how long the token remains valid from now. A revoked
// credential is blacklisted for exactly this window, so the revocation entry
// expires together with the credential it shadows. Returns an error when the
// token cannot be verified or carries no expiry.
func (s *Service) RemainingTTL(tokenString string, now time.Time) (time.Duration, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return 0, err
	}
	if claims.ExpiresAt == nil {
		return 0, fmt.Errorf("%w: missing expiry", apperrors.ErrInvalidCredential)
	}
	remaining := claims.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// parse verifies the signature and decodes the registered claims. Claim
// validation (exp and friends) is skipped so callers can inspect expired
// tokens; expiry is enforced by IsValid.
func (s *Service) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredential, err)
	}
	return claims, nil
}

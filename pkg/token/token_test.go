package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
)

const testSecret = "test-secret-key-at-least-32-bytes-long"

func newTestService() *Service {
	return NewService(testSecret, 15*time.Minute, 24*time.Hour)
}

func TestIssueAndExtractSubject(t *testing.T) {
	svc := newTestService()

	token, err := svc.IssueAccessToken("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := svc.ExtractSubject(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestExtractSubject_Malformed(t *testing.T) {
	svc := newTestService()

	_, err := svc.ExtractSubject("not-a-jwt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredential))
}

func TestExtractSubject_WrongSecret(t *testing.T) {
	other := NewService("a-completely-different-secret-value-here", 15*time.Minute, 24*time.Hour)
	token, err := other.IssueAccessToken("alice")
	require.NoError(t, err)

	svc := newTestService()
	_, err = svc.ExtractSubject(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredential))
}

func TestExtractSubject_RejectsUnsignedToken(t *testing.T) {
	svc := newTestService()

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ExtractSubject(unsigned)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredential))
}

func TestIsValid(t *testing.T) {
	svc := newTestService()

	token, err := svc.IssueAccessToken("alice")
	require.NoError(t, err)

	assert.True(t, svc.IsValid(token, "alice"))
	assert.False(t, svc.IsValid(token, "bob"), "subject mismatch must fail")
	assert.False(t, svc.IsValid("garbage", "alice"))
}

func TestIsValid_Expired(t *testing.T) {
	svc := NewService(testSecret, -time.Minute, 24*time.Hour)

	token, err := svc.IssueAccessToken("alice")
	require.NoError(t, err)

	// The subject is still recoverable; only validity fails.
	subject, err := svc.ExtractSubject(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
	assert.False(t, svc.IsValid(token, "alice"))
}

func TestIssueRefreshToken_Unique(t *testing.T) {
	svc := newTestService()

	first, err := svc.IssueRefreshToken("alice")
	require.NoError(t, err)
	second, err := svc.IssueRefreshToken("alice")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "refresh tokens issued back to back must differ")
}

func TestRemainingTTL(t *testing.T) {
	svc := newTestService()

	token, err := svc.IssueAccessToken("alice")
	require.NoError(t, err)

	remaining, err := svc.RemainingTTL(token, time.Now().UTC())
	require.NoError(t, err)
	assert.Greater(t, remaining, 14*time.Minute)
	assert.LessOrEqual(t, remaining, 15*time.Minute)
}

func TestRemainingTTL_ExpiredClampsToZero(t *testing.T) {
	svc := NewService(testSecret, -time.Hour, 24*time.Hour)

	token, err := svc.IssueAccessToken("alice")
	require.NoError(t, err)

	remaining, err := svc.RemainingTTL(token, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), remaining)
}

func TestRemainingTTL_InvalidToken(t *testing.T) {
	svc := newTestService()

	_, err := svc.RemainingTTL("garbage", time.Now().UTC())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredential))
}

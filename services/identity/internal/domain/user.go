// Package domain holds the identity service's core entities.
package domain

import "time"

// Roles assignable to a user account.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is a directory account. PasswordHash is a bcrypt digest and is never
// serialized.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	Enabled       bool      `json:"enabled"`
	Locked        bool      `json:"locked"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CanLogin reports whether the account is allowed to authenticate.
func (u *User) CanLogin() bool {
	return u.EmailVerified && u.Enabled && !u.Locked
}

// RefreshToken is the stored record of an issued refresh token. Only the
// SHA256 hash of the token string is persisted.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// Valid reports whether the token is usable at the given instant.
func (rt *RefreshToken) Valid(now time.Time) bool {
	return rt.RevokedAt == nil && now.Before(rt.ExpiresAt)
}

// Email token purposes.
const (
	EmailTokenVerify        = "VERIFY_EMAIL"
	EmailTokenResetPassword = "RESET_PASSWORD"
)

// Lifetimes per token purpose.
const (
	VerifyEmailTokenTTL   = 24 * time.Hour
	ResetPasswordTokenTTL = time.Hour
)

// EmailToken is a single-use token mailed to a user for email verification
// or password reset.
type EmailToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"-"`
	Purpose   string    `json:"purpose"`
	Used      bool      `json:"used"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Consumable reports whether the token can still be redeemed for the given
// purpose at the given instant.
func (et *EmailToken) Consumable(purpose string, now time.Time) bool {
	return !et.Used && et.Purpose == purpose && now.Before(et.ExpiresAt)
}

// TokenPair bundles a freshly issued access token with its refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Package revocation tracks credentials that were invalidated before their
// natural expiry. An entry lives exactly as long as the credential it shadows
// would have remained valid, so the cache never grows beyond the set of
// still-live revoked tokens.
package revocation

import (
	"context"
	"time"
)

// Store is the shared revocation list consulted by the gateway and by any
// service that verifies credentials directly.
type Store interface {
	// Revoke marks a credential as revoked for the given remaining lifetime.
	// Revoking an already revoked credential is a no-op.
	Revoke(ctx context.Context, token string, ttl time.Duration) error

	// IsRevoked reports whether the credential is currently revoked.
	// Callers treat a store error as revoked; admission fails closed.
	IsRevoked(ctx context.Context, token string) (bool, error)
}

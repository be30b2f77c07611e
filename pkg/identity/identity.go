// Package identity resolves authenticated principals against the user
// directory. The gateway and backend services depend on the Directory
// interface; the HTTP implementation talks to the identity service's
// internal lookup endpoint.
package identity

import "context"

// Roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity is the directory's view of an authenticated principal.
type Identity struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
}

// Directory looks up principals by username. Implementations must honor the
// context deadline; admission decisions block on this call.
type Directory interface {
	GetByUsername(ctx context.Context, username string) (*Identity, error)
}

/*
Package auth resolves bearer tokens to caller identities.

The rest of the system only ever consumes "who is calling and what role do
they have"; how the token was minted belongs to the auth provider, which this
package stands in for with a store lookup. Handlers accept the Verifier
interface so tests can substitute a fixed map.
*/
package auth

import (
	"context"
	"errors"

	"github.com/warp/leave-engine/store/sqlite"
)

// Role is a caller's access level.
type Role string

const (
	RoleAdmin    Role = sqlite.RoleAdmin
	RoleHR       Role = sqlite.RoleHR
	RoleManager  Role = sqlite.RoleManager
	RoleEmployee Role = sqlite.RoleEmployee
)

// ErrInvalidToken is returned for missing, unknown, or deactivated credentials.
var ErrInvalidToken = errors.New("invalid or missing authentication token")

// Identity is the authenticated caller.
type Identity struct {
	ID   string
	Name string
	Role Role
}

// Verifier validates a bearer token and returns the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ProfileSource looks up profiles by API token. *sqlite.Store satisfies it.
type ProfileSource interface {
	GetProfileByToken(ctx context.Context, token string) (*sqlite.Profile, error)
}

// StoreVerifier verifies tokens against the profiles table. Deactivated
// profiles fail verification even if their token is still on record.
type StoreVerifier struct {
	Profiles ProfileSource
}

// NewStoreVerifier creates a verifier backed by the given profile source.
func NewStoreVerifier(profiles ProfileSource) *StoreVerifier {
	return &StoreVerifier{Profiles: profiles}
}

// Verify implements Verifier.
func (v *StoreVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	p, err := v.Profiles.GetProfileByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Active {
		return nil, ErrInvalidToken
	}

	return &Identity{ID: p.ID, Name: p.Name, Role: Role(p.Role)}, nil
}

// StaticVerifier maps fixed tokens to identities. Test helper.
type StaticVerifier map[string]Identity

// Verify implements Verifier.
func (v StaticVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	ident, ok := v[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &ident, nil
}

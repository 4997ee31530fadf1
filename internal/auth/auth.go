// Package auth gates the gateway API. Operators authenticate with static
// bearer tokens; what an authenticated operator may do is decided by the
// role → action grants in AuthorizationService.
package auth

import (
	"context"
	"crypto/sha256"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// User is an authenticated gateway operator. Roles feed the
// AuthorizationService grant checks.
type User struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`

	// ExpiresAt ends the account itself. Zero means no expiry. Individual
	// tokens can expire earlier via RegisterTokenWithExpiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the account has lapsed.
func (u *User) IsExpired() bool {
	return !u.ExpiresAt.IsZero() && time.Now().After(u.ExpiresAt)
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// Authenticator resolves a presented token to an operator.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (*User, error)
}

// tokenGrant binds one token digest to an operator, optionally with its
// own lifetime.
type tokenGrant struct {
	user      *User
	expiresAt time.Time
}

func (g tokenGrant) expired() bool {
	if !g.expiresAt.IsZero() && time.Now().After(g.expiresAt) {
		return true
	}
	return g.user.IsExpired()
}

// StaticTokenAuthenticator authenticates against tokens registered at
// startup (flag, config or bootstrap file). Tokens are held as SHA-256
// digests; the plaintext is never stored.
type StaticTokenAuthenticator struct {
	mu     sync.RWMutex
	grants map[[sha256.Size]byte]tokenGrant
}

func NewStaticTokenAuthenticator() *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{
		grants: make(map[[sha256.Size]byte]tokenGrant),
	}
}

// RegisterToken binds a token to an operator for as long as the operator
// account is valid.
func (a *StaticTokenAuthenticator) RegisterToken(token string, user *User) {
	a.RegisterTokenWithExpiry(token, user, time.Time{})
}

// RegisterTokenWithExpiry binds a token that stops working at expiresAt
// even if the operator account remains valid. Zero means no token expiry.
func (a *StaticTokenAuthenticator) RegisterTokenWithExpiry(token string, user *User, expiresAt time.Time) {
	digest := sha256.Sum256([]byte(strings.TrimSpace(token)))
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grants[digest] = tokenGrant{user: user, expiresAt: expiresAt}
}

// ValidateToken resolves a presented bearer token. The failure message
// does not reveal whether the token was unknown or merely expired beyond
// the expiry case, which callers surface as a distinct error kind.
func (a *StaticTokenAuthenticator) ValidateToken(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.NewAuthFailed("token required")
	}

	digest := sha256.Sum256([]byte(token))
	a.mu.RLock()
	grant, ok := a.grants[digest]
	a.mu.RUnlock()

	if !ok {
		return nil, errors.NewAuthFailed("invalid token")
	}
	if grant.expired() {
		return nil, errors.NewAuthExpired()
	}
	return grant.user, nil
}

type userKey struct{}

// ContextWithUser attaches the authenticated operator to the request
// context.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the operator on the context, or nil when the
// request ran unauthenticated.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userKey{}).(*User)
	return user
}

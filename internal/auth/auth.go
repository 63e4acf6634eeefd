// Package auth authenticates API callers by bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/tutorly/internal/config"
)

// ErrUnauthorized is returned for a missing, malformed or rejected token.
var ErrUnauthorized = errors.New("unauthorized")

// User is an authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

type userKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by the middleware, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}

// StaticAuthenticator accepts a fixed set of tokens, each mapped to a user ID.
type StaticAuthenticator struct {
	tokens map[string]string
}

// NewStaticAuthenticator creates an authenticator from a token to user ID map.
func NewStaticAuthenticator(tokens map[string]string) *StaticAuthenticator {
	m := make(map[string]string, len(tokens))
	for k, v := range tokens {
		m[k] = v
	}
	return &StaticAuthenticator{tokens: m}
}

// Authenticate looks token up in the static map.
func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*User, error) {
	id, ok := a.tokens[token]
	if !ok || token == "" || id == "" {
		return nil, ErrUnauthorized
	}
	return &User{ID: id}, nil
}

// Providers.
const (
	ProviderSupabase = "supabase"
	ProviderStatic   = "static"
)

// NewAuthenticator builds the authenticator selected by cfg.Provider.
func NewAuthenticator(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Provider {
	case ProviderSupabase:
		key, err := config.Secret(cfg.SupabaseKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("supabase auth: %w", err)
		}
		return NewSupabaseAuthenticator(cfg.SupabaseURL, key, nil)
	case ProviderStatic:
		if len(cfg.Tokens) == 0 {
			return nil, fmt.Errorf("static auth: no tokens configured")
		}
		return NewStaticAuthenticator(cfg.Tokens), nil
	default:
		return nil, fmt.Errorf("unknown auth provider: %s", cfg.Provider)
	}
}

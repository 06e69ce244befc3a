// Package auth defines the authentication handler contract the gateway
// delegates to, plus the two shipped implementations: the remote
// data-platform client and a static in-process credential table.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials marks a well-formed rejection of the supplied
	// username/password pair. This is the only error that counts as a
	// throttleable failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnavailable marks a fault unrelated to credential validity, such
	// as the backend being unreachable.
	ErrUnavailable = errors.New("authentication backend unavailable")
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is the token issued on successful authentication. The gateway
// passes it through to the client unmodified.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticator verifies credentials and issues a session. Implementations
// return ErrInvalidCredentials for bad credentials and wrap everything else
// in ErrUnavailable so callers can classify outcomes with errors.Is.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Session, error)
}

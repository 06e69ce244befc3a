package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps the bcrypt comparison on the unknown-user path so lookup
// misses take roughly as long as password mismatches.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// StaticAuthenticator verifies credentials against a fixed table of bcrypt
// hashes. Used in development mode and tests, where no data platform is
// running.
type StaticAuthenticator struct {
	users      map[string]string
	sessionTTL time.Duration
}

func NewStaticAuthenticator(users map[string]string, sessionTTL time.Duration) *StaticAuthenticator {
	if users == nil {
		users = make(map[string]string)
	}
	return &StaticAuthenticator{users: users, sessionTTL: sessionTTL}
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, ok := a.users[creds.Username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Session{
		Token:     uuid.NewString(),
		UserID:    creds.Username,
		ExpiresAt: time.Now().Add(a.sessionTTL),
	}, nil
}

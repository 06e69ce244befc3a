package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newStaticAuth(t *testing.T, username, password string) *StaticAuthenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return NewStaticAuthenticator(map[string]string{username: string(hash)}, time.Hour)
}

func TestStaticAuthenticatorIssuesSession(t *testing.T) {
	t.Parallel()

	a := newStaticAuth(t, "alice", "s3cret")

	session, err := a.Authenticate(context.Background(), Credentials{Username: "alice", Password: "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected non-empty session token")
	}
	if session.UserID != "alice" {
		t.Fatalf("expected user id alice, got %q", session.UserID)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Fatal("expected session expiry in the future")
	}
}

func TestStaticAuthenticatorRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	a := newStaticAuth(t, "alice", "s3cret")

	_, err := a.Authenticate(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestStaticAuthenticatorRejectsUnknownUser(t *testing.T) {
	t.Parallel()

	a := newStaticAuth(t, "alice", "s3cret")

	_, err := a.Authenticate(context.Background(), Credentials{Username: "mallory", Password: "s3cret"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestStaticAuthenticatorHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	a := newStaticAuth(t, "alice", "s3cret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Authenticate(ctx, Credentials{Username: "alice", Password: "s3cret"})
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected a non-credential error for canceled context, got %v", err)
	}
}

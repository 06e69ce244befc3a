package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"authgate/internal/auth"
	"authgate/internal/events"
	"authgate/internal/limiter"
)

// scriptedAuthenticator returns a fixed result per username.
type scriptedAuthenticator struct {
	results map[string]error
}

func (a *scriptedAuthenticator) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Session, error) {
	if err, ok := a.results[creds.Username]; ok && err != nil {
		return nil, err
	}
	return &auth.Session{
		Token:     "tok-" + creds.Username,
		UserID:    creds.Username,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.SecurityEvent
}

func (p *capturingPublisher) Publish(_ context.Context, event events.SecurityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) byType(eventType string) []events.SecurityEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.SecurityEvent
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestHandler(t *testing.T, authenticator auth.Authenticator, publisher events.Publisher) *LoginHandler {
	t.Helper()

	store := limiter.NewMemoryStore(15 * time.Minute)
	gate, err := limiter.NewGate(store, limiter.Policy{
		MaxFailures: 5,
		Window:      15 * time.Minute,
		FailOpen:    true,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}

	return NewLoginHandler(
		gate,
		limiter.NewRecorder(store, zap.NewNop()),
		authenticator,
		publisher,
		LoginHandlerConfig{
			Strategy:    limiter.StrategyIP,
			MaxFailures: 5,
			AuthTimeout: time.Second,
		},
		zap.NewNop(),
	)
}

func doLogin(h *LoginHandler, ip, username, password string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(body))
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestLoginSuccessPassesSessionThrough(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &scriptedAuthenticator{}, nil)

	rec := doLogin(h, "192.0.2.1", "alice", "pw")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success envelope")
	}
}

func TestLoginThrottlesAfterMaxFailures(t *testing.T) {
	t.Parallel()

	publisher := &capturingPublisher{}
	h := newTestHandler(t, &scriptedAuthenticator{
		results: map[string]error{"alice": auth.ErrInvalidCredentials},
	}, publisher)

	for i := 1; i <= 5; i++ {
		rec := doLogin(h, "192.0.2.2", "alice", "wrong")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 on failure %d, got %d", i, rec.Code)
		}
	}

	rec := doLogin(h, "192.0.2.2", "alice", "wrong")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on 6th attempt, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on throttled response")
	}
	if !strings.Contains(rec.Body.String(), "too many attempts") {
		t.Fatalf("expected generic throttle wording, got %q", rec.Body.String())
	}

	if got := publisher.byType(events.EventLockout); len(got) != 1 {
		t.Fatalf("expected 1 lockout event, got %d", len(got))
	}
	if got := publisher.byType(events.EventRejected); len(got) != 1 {
		t.Fatalf("expected 1 rejected event, got %d", len(got))
	}
}

func TestLoginOtherClientUnaffectedByThrottle(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &scriptedAuthenticator{
		results: map[string]error{"alice": auth.ErrInvalidCredentials},
	}, nil)

	for i := 0; i < 6; i++ {
		doLogin(h, "192.0.2.3", "alice", "wrong")
	}

	rec := doLogin(h, "192.0.2.99", "bob", "pw")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected other client to be allowed, got %d", rec.Code)
	}
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	authenticator := &scriptedAuthenticator{
		results: map[string]error{"alice": auth.ErrInvalidCredentials},
	}
	h := newTestHandler(t, authenticator, nil)

	for i := 0; i < 3; i++ {
		doLogin(h, "192.0.2.4", "alice", "wrong")
	}

	// A successful login clears the slate.
	delete(authenticator.results, "alice")
	if rec := doLogin(h, "192.0.2.4", "alice", "pw"); rec.Code != http.StatusOK {
		t.Fatalf("expected success, got %d", rec.Code)
	}

	// Five more failures are tolerated before the throttle kicks in again.
	authenticator.results = map[string]error{"alice": auth.ErrInvalidCredentials}
	for i := 1; i <= 5; i++ {
		rec := doLogin(h, "192.0.2.4", "alice", "wrong")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 on post-reset failure %d, got %d", i, rec.Code)
		}
	}
	if rec := doLogin(h, "192.0.2.4", "alice", "wrong"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after post-reset failures, got %d", rec.Code)
	}
}

func TestLoginIndeterminateOutcomeNotCounted(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &scriptedAuthenticator{
		results: map[string]error{"alice": auth.ErrUnavailable},
	}, nil)

	for i := 0; i < 10; i++ {
		rec := doLogin(h, "192.0.2.5", "alice", "pw")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 for unavailable backend, got %d", rec.Code)
		}
	}

	// Outages never accumulate toward a lockout.
	rec := doLogin(h, "192.0.2.5", "alice", "pw")
	if rec.Code == http.StatusTooManyRequests {
		t.Fatal("indeterminate outcomes must not trigger throttling")
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &scriptedAuthenticator{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader("{not json"))
	req.RemoteAddr = "192.0.2.6:1000"
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}

	rec = doLogin(h, "192.0.2.6", "", "pw")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing username, got %d", rec.Code)
	}
}

func TestClientIPPrefersForwardingHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected socket fallback, got %q", got)
	}

	req.Header.Set("X-Real-IP", "203.0.113.9")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := clientIP(req); got != "198.51.100.7" {
		t.Fatalf("expected first X-Forwarded-For entry, got %q", got)
	}
}

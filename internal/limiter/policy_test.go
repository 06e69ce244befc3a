package limiter

import "testing"

func TestIdentityStrategyIPOnly(t *testing.T) {
	t.Parallel()

	got := StrategyIP.Identity("203.0.113.7", "alice")
	if got != Identity("203.0.113.7") {
		t.Fatalf("expected IP-only identity, got %q", got)
	}
}

func TestIdentityStrategyIPUsername(t *testing.T) {
	t.Parallel()

	got := StrategyIPUsername.Identity("203.0.113.7", "alice")
	if got != Identity("203.0.113.7|alice") {
		t.Fatalf("expected composite identity, got %q", got)
	}

	// Without a username the composite strategy degrades to IP-only so
	// malformed requests still bucket somewhere.
	got = StrategyIPUsername.Identity("203.0.113.7", "")
	if got != Identity("203.0.113.7") {
		t.Fatalf("expected IP fallback, got %q", got)
	}
}

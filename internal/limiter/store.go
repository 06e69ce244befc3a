package limiter

import (
	"context"
	"time"
)

// AttemptStatus is a point-in-time view of one identity's failure window.
type AttemptStatus struct {
	// Failures observed since the window started; 0 when the window is
	// absent or expired.
	Failures int
	// ResetIn is the time remaining until the window expires. Zero when
	// there is no active window.
	ResetIn time.Duration
}

// AttemptStore owns all failure-window state. Implementations must serialize
// RecordFailure per identity: N concurrent calls for the same identity yield
// a count increased by exactly N.
type AttemptStore interface {
	// Status reports the current failure count, treating an expired or
	// absent window as zero.
	Status(ctx context.Context, id Identity) (AttemptStatus, error)

	// RecordFailure increments the identity's failure count, starting a
	// fresh window if none is active, and returns the new count.
	RecordFailure(ctx context.Context, id Identity) (int, error)

	// Clear removes all throttling state for the identity.
	Clear(ctx context.Context, id Identity) error
}

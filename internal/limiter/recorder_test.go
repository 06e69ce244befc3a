package limiter

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRecorderFailureIncrements(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Minute)
	recorder := NewRecorder(store, zap.NewNop())
	ctx := context.Background()
	id := Identity("192.0.2.10")

	if count := recorder.Observe(ctx, id, OutcomeFailure); count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
	if count := recorder.Observe(ctx, id, OutcomeFailure); count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestRecorderSuccessClearsImmediately(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Minute)
	recorder := NewRecorder(store, zap.NewNop())
	ctx := context.Background()
	id := Identity("192.0.2.11")

	recorder.Observe(ctx, id, OutcomeFailure)
	recorder.Observe(ctx, id, OutcomeFailure)
	recorder.Observe(ctx, id, OutcomeFailure)

	recorder.Observe(ctx, id, OutcomeSuccess)

	// A failure after the reset starts from 1, not 4.
	if count := recorder.Observe(ctx, id, OutcomeFailure); count != 1 {
		t.Fatalf("expected count 1 after success reset, got %d", count)
	}
}

func TestRecorderIndeterminateSkipsUpdate(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Minute)
	recorder := NewRecorder(store, zap.NewNop())
	ctx := context.Background()
	id := Identity("192.0.2.12")

	recorder.Observe(ctx, id, OutcomeFailure)
	recorder.Observe(ctx, id, OutcomeIndeterminate)

	status, err := store.Status(ctx, id)
	if err != nil {
		t.Fatalf("unexpected status error: %v", err)
	}
	if status.Failures != 1 {
		t.Fatalf("expected indeterminate outcome to leave count at 1, got %d", status.Failures)
	}
}

func TestRecorderSwallowsStoreErrors(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder(failingStore{}, zap.NewNop())
	ctx := context.Background()

	// Neither path may panic or surface the store fault.
	if count := recorder.Observe(ctx, Identity("x"), OutcomeFailure); count != 0 {
		t.Fatalf("expected count 0 on store error, got %d", count)
	}
	recorder.Observe(ctx, Identity("x"), OutcomeSuccess)
}

package limiter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"authgate/internal/util"
)

type attemptRecord struct {
	failures    int
	windowStart time.Time
}

// MemoryStore is the default in-process AttemptStore: a fixed-window counter
// per identity behind a single mutex. Expired windows are invalidated lazily
// on access, so the background sweep is purely a memory-release aid.
type MemoryStore struct {
	window time.Duration

	mu      sync.Mutex
	records map[Identity]*attemptRecord

	now func() time.Time
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		window:  window,
		records: make(map[Identity]*attemptRecord),
		now:     time.Now,
	}
}

func (s *MemoryStore) Status(_ context.Context, id Identity) (AttemptStatus, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return AttemptStatus{}, nil
	}

	resetIn := rec.windowStart.Add(s.window).Sub(now)
	if resetIn <= 0 {
		delete(s.records, id)
		return AttemptStatus{}, nil
	}

	return AttemptStatus{Failures: rec.failures, ResetIn: resetIn}, nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, id Identity) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || now.Sub(rec.windowStart) >= s.window {
		s.records[id] = &attemptRecord{failures: 1, windowStart: now}
		return 1, nil
	}

	rec.failures++
	return rec.failures, nil
}

func (s *MemoryStore) Clear(_ context.Context, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// SweepExpired drops records whose window has elapsed and returns how many
// were removed. Not required for correctness; Status and RecordFailure
// already treat expired windows as fresh.
func (s *MemoryStore) SweepExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if now.Sub(rec.windowStart) >= s.window {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// Sweep runs SweepExpired on the given interval until the context ends.
func (s *MemoryStore) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.SweepExpired(); removed > 0 {
				util.Debug("swept expired attempt windows", zap.Int("removed", removed))
			}
		}
	}
}

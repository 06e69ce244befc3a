package limiter

import (
	"context"

	"go.uber.org/zap"

	"authgate/internal/util"
)

// Outcome is the tri-state classification of a completed login attempt.
// Indeterminate covers handler timeouts and faults unrelated to credential
// validity; those must never count against the client.
type Outcome int

const (
	OutcomeIndeterminate Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "indeterminate"
	}
}

// Recorder applies the outcome of one completed attempt to the store:
// success clears the identity, failure increments it, indeterminate is a
// no-op. It is wired exactly once per attempt, after the handler returns.
type Recorder struct {
	store  AttemptStore
	logger *zap.Logger
}

func NewRecorder(store AttemptStore, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Observe updates the store and returns the identity's failure count after
// the update (0 unless the outcome was a failure). Store faults are logged
// and swallowed; throttling state degrades rather than failing the request.
func (r *Recorder) Observe(ctx context.Context, id Identity, outcome Outcome) int {
	switch outcome {
	case OutcomeSuccess:
		if err := r.store.Clear(ctx, id); err != nil {
			r.logger.Error("failed to clear attempt state",
				util.String("identity", string(id)),
				util.ErrorField(err),
			)
		}
		return 0

	case OutcomeFailure:
		count, err := r.store.RecordFailure(ctx, id)
		if err != nil {
			r.logger.Error("failed to record login failure",
				util.String("identity", string(id)),
				util.ErrorField(err),
			)
			return 0
		}
		r.logger.Debug("login failure recorded",
			util.String("identity", string(id)),
			util.Int("failures", count),
		)
		return count

	default:
		// Handler timeout or an unrelated fault: skip the update.
		r.logger.Debug("indeterminate login outcome, skipping store update",
			util.String("identity", string(id)),
		)
		return 0
	}
}

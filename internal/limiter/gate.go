package limiter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"authgate/internal/util"
)

// Decision is the Gate's verdict for one incoming attempt.
type Decision struct {
	Allowed bool
	// Failures is the count observed at check time.
	Failures int
	// RetryAfter is how long the client should wait before trying again.
	// Only meaningful on rejection, and zero when the store is down and
	// the gate failed closed.
	RetryAfter time.Duration
}

// Gate decides, before the authentication handler runs, whether an attempt
// may proceed. It only reads the store; it never sees credentials and never
// invokes the handler.
type Gate struct {
	store  AttemptStore
	policy Policy
	logger *zap.Logger
}

func NewGate(store AttemptStore, policy Policy, logger *zap.Logger) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("attempt store is required")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Gate{store: store, policy: policy, logger: logger}, nil
}

// Check admits the attempt unless the identity has accumulated MaxFailures
// within the current window. A store fault degrades per policy: fail-open
// admits the attempt, fail-closed rejects it; both are logged and neither
// crashes request handling.
func (g *Gate) Check(ctx context.Context, id Identity) Decision {
	status, err := g.store.Status(ctx, id)
	if err != nil {
		if g.policy.FailOpen {
			g.logger.Error("attempt store unavailable, failing open",
				util.String("identity", string(id)),
				util.ErrorField(err),
			)
			return Decision{Allowed: true}
		}
		g.logger.Error("attempt store unavailable, failing closed",
			util.String("identity", string(id)),
			util.ErrorField(err),
		)
		return Decision{Allowed: false}
	}

	if status.Failures >= g.policy.MaxFailures {
		return Decision{
			Allowed:    false,
			Failures:   status.Failures,
			RetryAfter: status.ResetIn,
		}
	}

	return Decision{Allowed: true, Failures: status.Failures}
}

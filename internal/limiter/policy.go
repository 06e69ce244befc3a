// Package limiter implements failed-login throttling: an admission gate that
// rejects identities with too many recent authentication failures, and a
// recorder that updates failure counts from observed login outcomes.
package limiter

import (
	"fmt"
	"time"
)

// Identity is the key attempts are bucketed under, typically a client IP or
// an IP + username composite.
type Identity string

type IdentityStrategy string

const (
	StrategyIP         IdentityStrategy = "ip"
	StrategyIPUsername IdentityStrategy = "ip_username"
)

// Identity derives the throttling key for one login attempt. The function is
// pure; it never touches anything beyond the two inputs.
func (s IdentityStrategy) Identity(clientIP, username string) Identity {
	if s == StrategyIPUsername && username != "" {
		return Identity(clientIP + "|" + username)
	}
	return Identity(clientIP)
}

// Policy is the immutable throttling configuration consumed by the Gate.
type Policy struct {
	// MaxFailures is the count at which further attempts are rejected.
	MaxFailures int
	// Window is the span over which failures accumulate before resetting.
	Window time.Duration
	// FailOpen controls behavior when the attempt store itself is
	// unavailable: allow the request through (true) or reject it (false).
	FailOpen bool
}

func (p Policy) validate() error {
	if p.MaxFailures <= 0 {
		return fmt.Errorf("policy max failures must be positive, got %d", p.MaxFailures)
	}
	if p.Window <= 0 {
		return fmt.Errorf("policy window must be positive, got %s", p.Window)
	}
	return nil
}

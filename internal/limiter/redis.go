package limiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"authgate/internal/client"
)

const failureKeyPrefix = "login_failures:"

// recordFailureScript increments the counter and starts the window TTL only
// on the first failure, so the window is fixed rather than rolling. Running
// it as a single script keeps concurrent increments linearizable per key.
const recordFailureScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`

// RedisStore is the shared AttemptStore for multi-instance deployments.
// Window expiry rides on Redis key TTLs, so no sweeping is needed.
type RedisStore struct {
	client *client.RedisClient
	window time.Duration
}

func NewRedisStore(c *client.RedisClient, window time.Duration) *RedisStore {
	return &RedisStore{client: c, window: window}
}

func (s *RedisStore) key(id Identity) string {
	return failureKeyPrefix + string(id)
}

func (s *RedisStore) Status(ctx context.Context, id Identity) (AttemptStatus, error) {
	key := s.key(id)

	raw, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return AttemptStatus{}, nil
		}
		return AttemptStatus{}, fmt.Errorf("failed to read failure count: %w", err)
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return AttemptStatus{}, fmt.Errorf("invalid failure count format %q: %w", raw, err)
	}

	ttl, err := s.client.PTTL(ctx, key)
	if err != nil {
		return AttemptStatus{}, fmt.Errorf("failed to read window ttl: %w", err)
	}
	if ttl < 0 {
		// Key vanished or carries no TTL; treat the window as gone.
		return AttemptStatus{}, nil
	}

	return AttemptStatus{Failures: count, ResetIn: ttl}, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, id Identity) (int, error) {
	result, err := s.client.Eval(ctx, recordFailureScript,
		[]string{s.key(id)}, s.window.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to record failure: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from failure script: %T", result)
	}
	return int(count), nil
}

func (s *RedisStore) Clear(ctx context.Context, id Identity) error {
	if err := s.client.Del(ctx, s.key(id)); err != nil {
		return fmt.Errorf("failed to clear failure count: %w", err)
	}
	return nil
}

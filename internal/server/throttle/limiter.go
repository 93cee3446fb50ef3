package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("redis unavailable")

// Scope names used by the HTTP layer.
const (
	ScopeAnon          = "anon"
	ScopeUser          = "user"
	ScopeSensitiveAnon = "sensitive_anon"
	ScopeSensitiveUser = "sensitive_user"
)

// Decision is the outcome of one hit.
type Decision struct {
	Allowed bool
	// Wait is the time left in the current window when not allowed.
	Wait time.Duration
}

// Limiter counts hits per scope and identity in fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient, prefix: "throttle"}
}

func (l *Limiter) key(scope, ident string) string {
	return fmt.Sprintf("%s_%s_%s", l.prefix, scope, ident)
}

// Allow records a hit for ident in scope and reports whether it fits the
// rate. Redis failures are returned wrapped in ErrRedisUnavailable.
//
// INCR, EXPIRE NX and TTL run in one MULTI/EXEC, so a counter never
// outlives its window: the first hit sets the expiry and later hits leave
// it alone. A key that somehow lost its expiry gets a fresh one.
func (l *Limiter) Allow(ctx context.Context, scope, ident string, rate Rate) (Decision, error) {
	key := l.key(scope, ident)

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, rate.Period)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if incr.Val() <= int64(rate.Limit) {
		return Decision{Allowed: true}, nil
	}

	wait := ttl.Val()
	if wait < 0 {
		wait = rate.Period
	}
	return Decision{Allowed: false, Wait: wait}, nil
}

// WaitSeconds rounds a wait up to whole seconds.
func WaitSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

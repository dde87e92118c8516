// Package redis backs request throttling with a shared Redis counter so every
// api instance sees the same budget.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter and starts the window on the first
// hit, atomically. Returns {count, ttl_ms}.
var fixedWindowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter is a fixed-window counter per key.
type Limiter struct {
	rdb    goredis.Scripter
	limit  int
	window time.Duration
	prefix string
}

func NewLimiter(rdb goredis.Scripter, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: "rate_limit:"}
}

func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}

	count, ttl := res[0], res[1]
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	reset := time.Duration(ttl) * time.Millisecond
	if ttl < 0 {
		reset = l.window
	}
	return Decision{
		Allowed:   count <= int64(l.limit),
		Remaining: remaining,
		ResetIn:   reset,
	}, nil
}

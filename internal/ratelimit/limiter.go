package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "auth:rl:"

// Result describes the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter kept in Redis. The first hit of a window
// creates the key with a TTL of one window.
type Limiter struct {
	client redis.Cmdable
	max    int
	window time.Duration
}

func New(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, max: limit, window: window}
}

// Allow counts one hit against key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	key = keyPrefix + key

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, key, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	if count <= int64(l.max) {
		return Result{Allowed: true, Remaining: l.max - int(count)}, nil
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("pttl %s: %w", key, err)
	}
	if ttl < 0 {
		// The key lost its TTL (e.g. a crash between INCR and PEXPIRE); start a new window.
		if err := l.client.PExpire(ctx, key, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("expire %s: %w", key, err)
		}
		ttl = l.window
	}
	return Result{Allowed: false, RetryAfter: ttl}, nil
}

// Package ratelimit implements a fixed-window request limiter backed by
// Redis, shared across API instances.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit describes one bucket: at most Max requests per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of a Check. RetryAfter is only meaningful when
// Allowed is false.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	client *redis.Client
	prefix string
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client, prefix: "anilog:ratelimit:"}
}

// Check counts a hit against the key's current window and decides whether
// the request may proceed. When Redis is unreachable the limiter fails
// open: losing rate limiting briefly is better than refusing logins.
func (l *Limiter) Check(ctx context.Context, key string, limit Limit) Decision {
	fullKey := l.prefix + key

	count, err := l.client.Incr(ctx, fullKey).Result()
	if err != nil {
		log.Printf(`{"level":"warn","msg":"rate limiter unavailable","error":%q}`, err.Error())
		return Decision{Allowed: true, Remaining: limit.Max}
	}

	if count == 1 {
		if err := l.client.Expire(ctx, fullKey, limit.Window).Err(); err != nil {
			log.Printf(`{"level":"warn","msg":"rate limiter expire failed","error":%q}`, err.Error())
		}
	}

	if count > int64(limit.Max) {
		ttl, err := l.client.TTL(ctx, fullKey).Result()
		if err != nil || ttl < 0 {
			ttl = limit.Window
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: ttl}
	}

	return Decision{Allowed: true, Remaining: limit.Max - int(count)}
}

// Reset clears a key's window, used after a successful login so prior
// failures stop counting against the account.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

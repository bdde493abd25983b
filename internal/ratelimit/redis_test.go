package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewLimiter(client), s
}

func TestCheckAllowsUnderLimit(t *testing.T) {
	limiter, s := setupLimiter(t)
	defer s.Close()

	ctx := context.Background()
	limit := Limit{Max: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		decision := limiter.Check(ctx, "login:alice", limit)
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestCheckBlocksOverLimit(t *testing.T) {
	limiter, s := setupLimiter(t)
	defer s.Close()

	ctx := context.Background()
	limit := Limit{Max: 2, Window: time.Minute}

	limiter.Check(ctx, "login:bob", limit)
	limiter.Check(ctx, "login:bob", limit)

	decision := limiter.Check(ctx, "login:bob", limit)
	if decision.Allowed {
		t.Fatal("third request should be blocked")
	}
	if decision.RetryAfter <= 0 {
		t.Errorf("expected positive RetryAfter, got %v", decision.RetryAfter)
	}
}

func TestWindowResets(t *testing.T) {
	limiter, s := setupLimiter(t)
	defer s.Close()

	ctx := context.Background()
	limit := Limit{Max: 1, Window: time.Second}

	limiter.Check(ctx, "login:carol", limit)
	if decision := limiter.Check(ctx, "login:carol", limit); decision.Allowed {
		t.Fatal("second request in window should be blocked")
	}

	s.FastForward(2 * time.Second)

	if decision := limiter.Check(ctx, "login:carol", limit); !decision.Allowed {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, s := setupLimiter(t)
	defer s.Close()

	ctx := context.Background()
	limit := Limit{Max: 1, Window: time.Minute}

	limiter.Check(ctx, "login:dave", limit)
	if decision := limiter.Check(ctx, "login:dave", limit); decision.Allowed {
		t.Fatal("dave should be blocked")
	}
	if decision := limiter.Check(ctx, "login:erin", limit); !decision.Allowed {
		t.Fatal("erin should not be affected by dave's bucket")
	}
}

func TestReset(t *testing.T) {
	limiter, s := setupLimiter(t)
	defer s.Close()

	ctx := context.Background()
	limit := Limit{Max: 1, Window: time.Minute}

	limiter.Check(ctx, "login:frank", limit)
	if err := limiter.Reset(ctx, "login:frank"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if decision := limiter.Check(ctx, "login:frank", limit); !decision.Allowed {
		t.Fatal("request after reset should be allowed")
	}
}

func TestFailsOpenWhenRedisDown(t *testing.T) {
	limiter, s := setupLimiter(t)
	s.Close()

	decision := limiter.Check(context.Background(), "login:grace", Limit{Max: 1, Window: time.Minute})
	if !decision.Allowed {
		t.Fatal("limiter should fail open when redis is unreachable")
	}
}

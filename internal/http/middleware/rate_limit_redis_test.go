package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T) (*RedisFixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFixedWindowLimiter(client, "ratelimit"), mr
}

func TestRedisFixedWindowLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("counts within one window", func(t *testing.T) {
		limiter, _ := newRedisLimiter(t)

		for i := 0; i < 2; i++ {
			allowed, _, err := limiter.Allow(ctx, "client", 2, time.Minute)
			if err != nil {
				t.Fatalf("allow %d: %v", i, err)
			}
			if !allowed {
				t.Fatalf("request %d should be allowed", i)
			}
		}
		allowed, retryAfter, err := limiter.Allow(ctx, "client", 2, time.Minute)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if allowed {
			t.Fatal("third request should be rejected")
		}
		if retryAfter <= 0 {
			t.Fatalf("retryAfter = %v", retryAfter)
		}
	})

	t.Run("window expiry resets the count", func(t *testing.T) {
		limiter, mr := newRedisLimiter(t)

		if allowed, _, _ := limiter.Allow(ctx, "client", 1, time.Second); !allowed {
			t.Fatal("first request should be allowed")
		}
		if allowed, _, _ := limiter.Allow(ctx, "client", 1, time.Second); allowed {
			t.Fatal("second request should be rejected")
		}

		mr.FastForward(2 * time.Second)

		if allowed, _, _ := limiter.Allow(ctx, "client", 1, time.Second); !allowed {
			t.Fatal("request after expiry should be allowed")
		}
	})

	t.Run("nil client errors", func(t *testing.T) {
		limiter := NewRedisFixedWindowLimiter(nil, "")
		if _, _, err := limiter.Allow(ctx, "client", 1, time.Second); err == nil {
			t.Fatal("expected error")
		}
	})
}

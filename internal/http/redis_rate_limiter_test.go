package httpx

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/logicinvent/project-portfolio-api/pkg/config"
)

func newRedisLimiter(t *testing.T) (RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	limiter, err := NewRedisRateLimiter(context.Background(), config.RateLimitConfig{RedisAddr: srv.Addr()}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewRedisRateLimiter: %v", err)
	}
	t.Cleanup(limiter.Close)
	return limiter, srv
}

func TestRedisRateLimiterBlocksAfterLimit(t *testing.T) {
	limiter, srv := newRedisLimiter(t)
	for i := 1; i <= 2; i++ {
		decision := limiter.Allow("user:operator", 2, time.Minute)
		if !decision.allowed || decision.count != i {
			t.Fatalf("request %d: %+v", i, decision)
		}
	}
	if decision := limiter.Allow("user:operator", 2, time.Minute); decision.allowed {
		t.Fatalf("third request should be blocked: %+v", decision)
	}
	if ttl := srv.TTL(redisRateLimitPrefix + "user:operator"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestRedisRateLimiterWindowResets(t *testing.T) {
	limiter, srv := newRedisLimiter(t)
	limiter.Allow("ip:10.0.0.1", 1, time.Minute)
	if decision := limiter.Allow("ip:10.0.0.1", 1, time.Minute); decision.allowed {
		t.Fatalf("expected block inside window")
	}
	srv.FastForward(time.Minute + time.Second)
	if decision := limiter.Allow("ip:10.0.0.1", 1, time.Minute); !decision.allowed {
		t.Fatalf("expected allow after window: %+v", decision)
	}
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	limiter, srv := newRedisLimiter(t)
	srv.Close()
	if decision := limiter.Allow("user:operator", 1, time.Minute); !decision.allowed {
		t.Fatalf("expected fail-open when redis is gone")
	}
}

func TestNewRedisRateLimiterRejectsUnreachable(t *testing.T) {
	_, err := NewRedisRateLimiter(context.Background(), config.RateLimitConfig{RedisAddr: "127.0.0.1:1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestMemoryRateLimiter(t *testing.T) {
	limiter := NewMemoryRateLimiter()
	defer limiter.Close()
	if d := limiter.Allow("k", 1, time.Minute); !d.allowed {
		t.Fatalf("first call blocked")
	}
	if d := limiter.Allow("k", 1, time.Minute); d.allowed {
		t.Fatalf("second call allowed")
	}
	if d := limiter.Allow("other", 1, time.Minute); !d.allowed {
		t.Fatalf("keys must be independent")
	}
	if d := limiter.Allow("k", 0, time.Minute); !d.allowed {
		t.Fatalf("zero limit disables limiting")
	}
}

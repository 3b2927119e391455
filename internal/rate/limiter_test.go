package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), ContextTimeoutEnabled: true})
	return New(rdb, cfg), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestLoginLimitAfterFailures(t *testing.T) {
	l, _, done := newLimiterTest(t, Config{MaxLoginAttempts: 3, LoginWindow: time.Minute})
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("other user must not be limited: %v", err)
	}

	if err := l.ResetLogin(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected reset to clear limit: %v", err)
	}
}

func TestLoginIPThrottleSpansUsernames(t *testing.T) {
	l, _, done := newLimiterTest(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginWindow: time.Minute})
	defer done()
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "u1", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "u2", "10.0.0.1")

	if err := l.CheckLogin(ctx, "u3", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ip throttle, got %v", err)
	}
	if err := l.CheckLogin(ctx, "u3", "10.0.0.2"); err != nil {
		t.Fatalf("other ip must pass: %v", err)
	}
}

func TestWindowExpires(t *testing.T) {
	l, mr, done := newLimiterTest(t, Config{MaxRegisterAttempts: 1, RegisterWindow: 10 * time.Second})
	defer done()
	ctx := context.Background()

	if err := l.CheckRegister(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := l.CheckRegister(ctx, "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected second register to be limited, got %v", err)
	}

	mr.FastForward(11 * time.Second)
	if err := l.CheckRegister(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("expected window to reset: %v", err)
	}
}

func TestRefreshLimit(t *testing.T) {
	l, _, done := newLimiterTest(t, Config{MaxRefreshAttempts: 2, RefreshWindow: time.Minute})
	defer done()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "9.9.9.9"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "9.9.9.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected refresh limit, got %v", err)
	}
	if err := l.CheckRefresh(ctx, ""); err != nil {
		t.Fatalf("empty ip is never limited: %v", err)
	}
}

func TestDisabledLimitsAreNoOps(t *testing.T) {
	l, _, done := newLimiterTest(t, Config{})
	defer done()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = l.IncrementLogin(ctx, "a", "ip")
		if err := l.CheckLogin(ctx, "a", "ip"); err != nil {
			t.Fatalf("disabled login limit triggered: %v", err)
		}
		if err := l.CheckRegister(ctx, "ip"); err != nil {
			t.Fatalf("disabled register limit triggered: %v", err)
		}
	}
}

func TestRedisDownSurfacesUnavailable(t *testing.T) {
	l, mr, done := newLimiterTest(t, Config{MaxLoginAttempts: 1, LoginWindow: time.Minute})
	defer done()
	mr.Close()

	if err := l.CheckLogin(context.Background(), "a", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestIncrementArmsWindowAtomically(t *testing.T) {
	l, mr, done := newLimiterTest(t, Config{MaxLoginAttempts: 5, LoginWindow: 30 * time.Second})
	defer done()
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("increment: %v", err)
	}
	key := l.loginUserKey("alice")
	if ttl := mr.TTL(key); ttl != 30*time.Second {
		t.Fatalf("expected 30s window on first hit, got %s", ttl)
	}

	// A counter left without expiry gets its window back on the next hit.
	if err := mr.Set(key, "4"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if ttl := mr.TTL(key); ttl != 30*time.Second {
		t.Fatalf("expected stuck counter to be re-armed, got %s", ttl)
	}
	if n, err := l.LoginAttempts(ctx, "alice"); err != nil || n != 5 {
		t.Fatalf("expected 5 attempts, got %d err=%v", n, err)
	}

	mr.FastForward(31 * time.Second)
	if n, err := l.LoginAttempts(ctx, "alice"); err != nil || n != 0 {
		t.Fatalf("expected window to lapse, got %d err=%v", n, err)
	}
}

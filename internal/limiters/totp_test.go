package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestTOTPLimiterBlocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	l := NewTOTPLimiter(rdb, TOTPLimiterConfig{MaxAttempts: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		if err := l.RecordFailure(ctx, 11); err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
	}
	if err := l.RecordFailure(ctx, 11); !errors.Is(err, ErrTOTPRateLimited) {
		t.Fatalf("third failure err = %v", err)
	}
	if err := l.Check(ctx, 11); !errors.Is(err, ErrTOTPRateLimited) {
		t.Fatalf("Check err = %v", err)
	}
	if err := l.Check(ctx, 12); err != nil {
		t.Fatalf("other account throttled: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, 11); err != nil {
		t.Fatalf("window did not expire: %v", err)
	}
}

func TestTOTPLimiterReset(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	l := NewTOTPLimiter(rdb, TOTPLimiterConfig{MaxAttempts: 1})

	_ = l.RecordFailure(ctx, 1)
	if err := l.Reset(ctx, 1); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := l.Check(ctx, 1); err != nil {
		t.Fatalf("Check after reset: %v", err)
	}
}

func TestReplayGuardRejectsSecondUse(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	g := NewReplayGuard(rdb, 90*time.Second)

	if err := g.Claim(ctx, 4, "123456"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := g.Claim(ctx, 4, "123456"); !errors.Is(err, ErrTOTPReplay) {
		t.Fatalf("second claim err = %v", err)
	}
	if err := g.Claim(ctx, 5, "123456"); err != nil {
		t.Fatalf("other account claim: %v", err)
	}

	mr.FastForward(91 * time.Second)
	if err := g.Claim(ctx, 4, "123456"); err != nil {
		t.Fatalf("claim after window: %v", err)
	}
}

func TestNilLimitersAreNoOps(t *testing.T) {
	var l *TOTPLimiter
	var g *ReplayGuard
	ctx := context.Background()
	if l.Check(ctx, 1) != nil || l.RecordFailure(ctx, 1) != nil || l.Reset(ctx, 1) != nil || g.Claim(ctx, 1, "000000") != nil {
		t.Fatal("nil limiter returned an error")
	}
}

func TestTOTPLimiterUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewTOTPLimiter(rdb, TOTPLimiterConfig{})
	mr.Close()

	if err := l.RecordFailure(context.Background(), 1); !errors.Is(err, ErrTOTPUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTOTPMaxAttempts = 5
	defaultTOTPCooldown    = time.Minute
)

var (
	ErrTOTPRateLimited = errors.New("totp rate limited")
	ErrTOTPUnavailable = errors.New("totp limiter unavailable")
	ErrTOTPReplay      = errors.New("totp code already used")
)

// TOTPLimiterConfig holds configurable thresholds for the TOTP attempt
// throttle.
type TOTPLimiterConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// TOTPLimiter counts failed second-factor attempts per account in a fixed
// window.
type TOTPLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration
}

// NewTOTPLimiter creates a TOTP limiter. Zero-value fields in cfg fall back
// to 5 attempts per 60s.
func NewTOTPLimiter(redisClient redis.UniversalClient, cfg TOTPLimiterConfig) *TOTPLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultTOTPMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultTOTPCooldown
	}
	return &TOTPLimiter{redis: redisClient, maxAttempts: int64(max), cooldown: cd}
}

func totpAttemptKey(accountID int64) string {
	return "hubauth:totp:att:" + strconv.FormatInt(accountID, 10)
}

// Check fails once the account has used up its attempts in the window.
func (l *TOTPLimiter) Check(ctx context.Context, accountID int64) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, totpAttemptKey(accountID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrTOTPUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrTOTPRateLimited
	}
	return nil
}

// RecordFailure counts one failed attempt.
func (l *TOTPLimiter) RecordFailure(ctx context.Context, accountID int64) error {
	if l == nil {
		return nil
	}
	key := totpAttemptKey(accountID)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTOTPUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTOTPUnavailable, err)
		}
	}
	if count >= l.maxAttempts {
		return ErrTOTPRateLimited
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *TOTPLimiter) Reset(ctx context.Context, accountID int64) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, totpAttemptKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTOTPUnavailable, err)
	}
	return nil
}

// ReplayGuard remembers accepted (account, code) pairs for the validity
// window so a code cannot be used twice.
type ReplayGuard struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewReplayGuard returns a guard that remembers codes for ttl.
func NewReplayGuard(redisClient redis.UniversalClient, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{redis: redisClient, ttl: ttl}
}

// Claim records code as used. It returns ErrTOTPReplay when the same code
// was already claimed for the account inside the window.
func (g *ReplayGuard) Claim(ctx context.Context, accountID int64, code string) error {
	if g == nil {
		return nil
	}
	key := "hubauth:totp:used:" + strconv.FormatInt(accountID, 10) + ":" + code
	ok, err := g.redis.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTOTPUnavailable, err)
	}
	if !ok {
		return ErrTOTPReplay
	}
	return nil
}

package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Action names a throttled endpoint.
type Action string

const (
	ActionLogin          Action = "login"
	ActionSignup         Action = "signup"
	ActionForgotPassword Action = "forgot"
	ActionResend         Action = "resend"
	ActionTOTPVerify     Action = "totp"
)

// Rule is a fixed window: at most Limit hits per Window and key.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Config maps actions to rules. Actions without a rule are not throttled.
type Config struct {
	Prefix string
	Rules  map[Action]Rule
}

// Limiter enforces per-action fixed windows in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	rules  map[Action]Rule
}

// New returns a Limiter. A nil client yields a nil Limiter, which allows
// everything.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if redisClient == nil {
		return nil
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "hubauth:rl:"
	}
	rules := make(map[Action]Rule, len(cfg.Rules))
	for action, rule := range cfg.Rules {
		if rule.Limit > 0 && rule.Window > 0 {
			rules[action] = rule
		}
	}
	return &Limiter{redis: redisClient, prefix: prefix, rules: rules}
}

// Allow counts one hit for every non-empty key under action and returns
// ErrRateLimited when any key is over its limit.
func (l *Limiter) Allow(ctx context.Context, action Action, keys ...string) error {
	if l == nil {
		return nil
	}
	rule, ok := l.rules[action]
	if !ok {
		return nil
	}

	limited := false
	for _, key := range keys {
		if key == "" {
			continue
		}
		count, err := l.incrementWithTTL(ctx, l.key(action, key), rule.Window)
		if err != nil {
			return err
		}
		if count > int64(rule.Limit) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counters for keys under action.
func (l *Limiter) Reset(ctx context.Context, action Action, keys ...string) error {
	if l == nil {
		return nil
	}
	redisKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			redisKeys = append(redisKeys, l.key(action, key))
		}
	}
	if len(redisKeys) == 0 {
		return nil
	}
	if err := l.redis.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RetryAfter returns the remaining window for key, or zero.
func (l *Limiter) RetryAfter(ctx context.Context, action Action, key string) time.Duration {
	if l == nil || key == "" {
		return 0
	}
	ttl, err := l.redis.PTTL(ctx, l.key(action, key)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

func (l *Limiter) key(action Action, key string) string {
	return l.prefix + string(action) + ":" + strings.ToLower(key)
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

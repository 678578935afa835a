package hubauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRefreshIssuesAccessTokenWithCurrentRole(t *testing.T) {
	env := newTestEnv(t)
	res := env.signup(t, "amani@hub.example")
	ctx := context.Background()

	env.clock.Advance(time.Minute)
	out, err := env.engine.Refresh(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if out.AccessToken == "" || out.AccessToken == res.Tokens.AccessToken {
		t.Fatalf("expected a new access token")
	}

	auth, err := env.engine.Validate(ctx, out.AccessToken, ModeInherit)
	if err != nil {
		t.Fatalf("validate refreshed token: %v", err)
	}
	if auth.AccountID != res.User.ID || auth.Role != "user" {
		t.Fatalf("unexpected identity %+v", auth)
	}
}

func TestRefreshErrorsAreDistinct(t *testing.T) {
	env := newTestEnv(t)
	res := env.signup(t, "amani@hub.example")
	ctx := context.Background()

	if _, err := env.engine.Refresh(ctx, "not.a.jwt"); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("malformed: expected ErrRefreshTokenInvalid, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("access token as refresh: expected ErrRefreshTokenInvalid, got %v", err)
	}

	env.clock.Advance(8 * 24 * time.Hour)
	_, err := env.engine.Refresh(ctx, res.Tokens.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expired: expected ErrRefreshTokenExpired, got %v", err)
	}
	if errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expired must not match invalid")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshInvalid] != 2 || snap.Counters[MetricRefreshExpired] != 1 {
		t.Fatalf("unexpected refresh metrics %+v", snap.Counters)
	}
}

func TestRefreshExpiredAccessTokenIsInvalid(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *Config) { c.JWT.RefreshKey = nil }))
	res := env.signup(t, "amani@hub.example")

	env.clock.Advance(time.Hour)
	_, err := env.engine.Refresh(context.Background(), res.Tokens.AccessToken)
	if !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected ErrRefreshTokenInvalid, got %v", err)
	}
	if errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("an access token must never read as an expired refresh token")
	}
}

func TestRefreshRejectsRevokedSession(t *testing.T) {
	env := newTestEnv(t, withSessions(), withConfig(func(c *Config) { c.Session.TrackOnLogin = true }))
	res := env.signup(t, "amani@hub.example")
	ctx := context.Background()

	if res.Tokens.SessionID == 0 {
		t.Fatalf("expected a session-bound token pair")
	}
	if _, err := env.engine.Refresh(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := env.engine.RevokeSession(ctx, res.User.ID, res.Tokens.SessionID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected ErrRefreshTokenInvalid after revoke, got %v", err)
	}
}

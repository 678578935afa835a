package hubauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t, withSessions(), withConfig(func(c *Config) { c.Session.TrackOnLogin = true }))
	res := env.signup(t, "amani@hub.example")
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, "amani@hub.example", testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, _ = env.engine.Login(ctx, "amani@hub.example", "wrong-password")
	}

	if err := env.engine.ForgotPassword(ctx, "amani@hub.example"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	token := env.mail.last(t, "reset").token

	if err := env.engine.ResetPassword(ctx, token, "a-brand-new-secret"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := env.engine.ResetPassword(ctx, token, "another-new-secret"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("second use: expected ErrInvalidResetToken, got %v", err)
	}

	stored, _ := env.accounts.GetByID(ctx, res.User.ID)
	if stored.FailedLoginAttempts != 0 || !stored.LockedUntil.IsZero() {
		t.Fatalf("reset must clear lockout state")
	}
	if !stored.PasswordResetAt.Equal(env.clock.Now()) {
		t.Fatalf("expected PasswordResetAt stamped, got %v", stored.PasswordResetAt)
	}

	sessions, err := env.engine.ListSessions(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected sessions revoked, got %d", len(sessions))
	}
	if env.mail.count("changed") != 1 {
		t.Fatalf("expected a password changed notice")
	}

	if _, err := env.engine.Login(ctx, "amani@hub.example", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must fail, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "amani@hub.example", "a-brand-new-secret"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestForgotPasswordIsGenericForUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	if err := env.engine.ForgotPassword(context.Background(), "ghost@hub.example"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if env.mail.count("reset") != 0 {
		t.Fatalf("no mail expected for unknown email")
	}
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "amani@hub.example")
	ctx := context.Background()

	if err := env.engine.ForgotPassword(ctx, "amani@hub.example"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	token := env.mail.last(t, "reset").token

	env.clock.Advance(time.Hour + time.Second)
	if err := env.engine.ResetPassword(ctx, token, "a-brand-new-secret"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken, got %v", err)
	}
}

func TestResetPasswordValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.engine.ResetPassword(ctx, "", "a-brand-new-secret"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := env.engine.ResetPassword(ctx, "abc", "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for short password, got %v", err)
	}
}

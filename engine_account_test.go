package hubauth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/swahilipot/hubauth/internal"
)

func TestSignupCreatesAccountAndQueuesVerification(t *testing.T) {
	env := newTestEnv(t)

	res := env.signup(t, "Wanjiru@Hub.example")
	if res.User.Email != "wanjiru@hub.example" {
		t.Fatalf("expected normalized email, got %q", res.User.Email)
	}
	if res.User.Role != "user" || res.User.EmailVerified {
		t.Fatalf("unexpected user view %+v", res.User)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatalf("signup must issue tokens")
	}

	mail := env.mail.last(t, "verification")
	if mail.to != "wanjiru@hub.example" {
		t.Fatalf("verification sent to %q", mail.to)
	}
	stored, err := env.accounts.GetByID(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if stored.VerificationTokenHash != internal.HashToken(mail.token) {
		t.Fatalf("stored digest does not match mailed token")
	}
	if stored.VerificationTokenHash == mail.token {
		t.Fatalf("token must not be stored in clear")
	}
	if !strings.HasPrefix(stored.PasswordHash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", stored.PasswordHash)
	}
}

func TestSignupRejectsReservedEmail(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Signup(context.Background(), SignupInput{
		Email:    "ADMIN@hub.example",
		Password: testPassword,
		FullName: "Impostor",
	})
	if !errors.Is(err, ErrReservedEmail) {
		t.Fatalf("expected ErrReservedEmail, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSignupReserved]; got != 1 {
		t.Fatalf("expected reserved metric 1, got %d", got)
	}
}

func TestSignupReservedEmailCheckedFirst(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		in   SignupInput
	}{
		{"short password", SignupInput{Email: "admin@hub.example", Password: "x", FullName: "Impostor"}},
		{"missing name", SignupInput{Email: "admin@hub.example", Password: testPassword}},
		{"nothing else", SignupInput{Email: " Admin@HUB.example "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Signup(context.Background(), tt.in)
			if !errors.Is(err, ErrReservedEmail) {
				t.Fatalf("expected ErrReservedEmail, got %v", err)
			}
		})
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "amani@hub.example")

	_, err := env.engine.Signup(context.Background(), SignupInput{
		Email:    "amani@HUB.example",
		Password: testPassword,
		FullName: "Second Amani",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		in   SignupInput
	}{
		{"missing email", SignupInput{Password: testPassword, FullName: "A"}},
		{"bad email", SignupInput{Email: "not-an-email", Password: testPassword, FullName: "A"}},
		{"no tld", SignupInput{Email: "a@localhost", Password: testPassword, FullName: "A"}},
		{"short password", SignupInput{Email: "a@hub.example", Password: "short", FullName: "A"}},
		{"missing name", SignupInput{Email: "a@hub.example", Password: testPassword}},
		{"long name", SignupInput{Email: "a@hub.example", Password: testPassword, FullName: strings.Repeat("n", 101)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Signup(context.Background(), tt.in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestMeReturnsPublicView(t *testing.T) {
	env := newTestEnv(t)
	res := env.signup(t, "amani@hub.example")

	u, err := env.engine.Me(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if u.ID != res.User.ID || u.FullName != "Amani Njoroge" || u.Department != "Programs" {
		t.Fatalf("unexpected user %+v", u)
	}

	if _, err := env.engine.Me(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

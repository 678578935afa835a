package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/swahilipot/hubauth/account"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s *Accounts, email string) *account.Account {
	t.Helper()
	a, err := s.Create(context.Background(), account.NewAccount{
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test User",
		CreatedAt:    testNow,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func TestAccountsCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	s := NewAccounts()
	a := seedAccount(t, s, "  Alice@Example.COM ")
	if a.Email != "alice@example.com" || a.Role != account.RoleUser {
		t.Fatalf("unexpected account: %+v", a)
	}

	_, err := s.Create(context.Background(), account.NewAccount{Email: "ALICE@example.com"})
	if !errors.Is(err, account.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	got, err := s.GetByEmail(context.Background(), "alice@EXAMPLE.com")
	if err != nil || got.ID != a.ID {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}
}

func TestAccountsConcurrentFailuresAreNotLost(t *testing.T) {
	s := NewAccounts()
	a := seedAccount(t, s, "bob@example.com")
	rule := account.LockoutRule{Threshold: 1000, Duration: time.Minute}

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.RecordLoginFailure(context.Background(), a.ID, rule, testNow); err != nil {
				t.Errorf("RecordLoginFailure: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetByID(context.Background(), a.ID)
	if got.FailedLoginAttempts != workers {
		t.Fatalf("attempts = %d, want %d", got.FailedLoginAttempts, workers)
	}
}

func TestAccountsResetLoginFailuresKeepsActiveLock(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	a := seedAccount(t, s, "bea@example.com")
	rule := account.LockoutRule{Threshold: 5, Duration: 30 * time.Minute}

	for i := 0; i < rule.Threshold; i++ {
		if _, err := s.RecordLoginFailure(ctx, a.ID, rule, testNow); err != nil {
			t.Fatalf("RecordLoginFailure: %v", err)
		}
	}

	if err := s.ResetLoginFailures(ctx, a.ID, testNow.Add(time.Minute)); !errors.Is(err, account.ErrLocked) {
		t.Fatalf("reset while locked err = %v, want ErrLocked", err)
	}
	got, _ := s.GetByID(ctx, a.ID)
	if got.FailedLoginAttempts != rule.Threshold || !got.LockedUntil.Equal(testNow.Add(rule.Duration)) {
		t.Fatalf("lock erased: attempts=%d lockedUntil=%v", got.FailedLoginAttempts, got.LockedUntil)
	}

	if err := s.ResetLoginFailures(ctx, a.ID, testNow.Add(31*time.Minute)); err != nil {
		t.Fatalf("reset after expiry: %v", err)
	}
	got, _ = s.GetByID(ctx, a.ID)
	if got.FailedLoginAttempts != 0 || !got.LockedUntil.IsZero() {
		t.Fatalf("state after reset: attempts=%d lockedUntil=%v", got.FailedLoginAttempts, got.LockedUntil)
	}
}

func TestAccountsVerificationTokenSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	a := seedAccount(t, s, "carol@example.com")

	if err := s.SetVerificationToken(ctx, a.ID, "digest", testNow.Add(time.Hour), testNow); err != nil {
		t.Fatalf("SetVerificationToken: %v", err)
	}
	got, err := s.ConsumeVerificationToken(ctx, "digest", testNow)
	if err != nil || !got.EmailVerified {
		t.Fatalf("first consume = %+v, %v", got, err)
	}
	if _, err := s.ConsumeVerificationToken(ctx, "digest", testNow); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("second consume err = %v", err)
	}
}

func TestAccountsResetTokenExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	a := seedAccount(t, s, "dave@example.com")

	if err := s.SetResetToken(ctx, a.ID, "digest", testNow.Add(time.Hour), testNow); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}
	if _, err := s.ConsumeResetToken(ctx, "digest", "new", testNow.Add(2*time.Hour)); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expired consume err = %v", err)
	}
	got, err := s.ConsumeResetToken(ctx, "digest", "new", testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("ConsumeResetToken: %v", err)
	}
	if got.PasswordHash != "new" || got.PasswordResetAt.IsZero() {
		t.Fatalf("unexpected account after reset: %+v", got)
	}
}

func TestAccountsTOTPLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	a := seedAccount(t, s, "erin@example.com")

	if err := s.EnableTOTP(ctx, a.ID, "SECRET", testNow); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("enable without secret err = %v", err)
	}
	if err := s.SetTOTPSecret(ctx, a.ID, "SECRET", testNow); err != nil {
		t.Fatalf("SetTOTPSecret: %v", err)
	}
	if err := s.EnableTOTP(ctx, a.ID, "OTHER", testNow); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("enable with replaced secret err = %v", err)
	}
	if err := s.EnableTOTP(ctx, a.ID, "SECRET", testNow); err != nil {
		t.Fatalf("EnableTOTP: %v", err)
	}
	got, _ := s.GetByID(ctx, a.ID)
	if got.TOTPState() != account.TOTPEnabled {
		t.Fatalf("state = %v", got.TOTPState())
	}
	if err := s.DisableTOTP(ctx, a.ID, testNow); err != nil {
		t.Fatalf("DisableTOTP: %v", err)
	}
	got, _ = s.GetByID(ctx, a.ID)
	if got.TOTPState() != account.TOTPDisabled {
		t.Fatalf("state after disable = %v", got.TOTPState())
	}
}

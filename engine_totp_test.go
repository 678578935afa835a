package hubauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/memstore"
)

// resettingAccounts replaces the pending TOTP secret right after the next
// lookup, as a second SetupTOTP running alongside EnableTOTP would.
type resettingAccounts struct {
	account.Store
	inner  *memstore.Accounts
	armed  bool
	secret string
}

func (s *resettingAccounts) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	a, err := s.inner.GetByID(ctx, id)
	if err != nil || !s.armed {
		return a, err
	}
	s.armed = false
	if err := s.inner.SetTOTPSecret(ctx, id, s.secret, a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

func TestTOTPSetupEnableDisable(t *testing.T) {
	env := newTestEnv(t)
	res := env.signup(t, "amani@hub.example")
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !strings.HasPrefix(setup.QRCode, "data:image/png;base64,") {
		t.Fatalf("expected PNG data URL, got %.40s", setup.QRCode)
	}
	if !strings.HasPrefix(setup.OTPAuthURL, "otpauth://totp/") {
		t.Fatalf("unexpected otpauth url %q", setup.OTPAuthURL)
	}

	stored, _ := env.accounts.GetByID(ctx, res.User.ID)
	if stored.TOTPState() != account.TOTPPending {
		t.Fatalf("expected pending state, got %v", stored.TOTPState())
	}

	good := totpCode(t, setup.Secret, env.clock.Now())
	bad := "000000"
	if bad == good {
		bad = "111111"
	}
	if err := env.engine.EnableTOTP(ctx, res.User.ID, bad); !errors.Is(err, ErrInvalidTOTPCode) {
		t.Fatalf("expected ErrInvalidTOTPCode, got %v", err)
	}
	if err := env.engine.EnableTOTP(ctx, res.User.ID, "12ab"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed code, got %v", err)
	}
	if err := env.engine.EnableTOTP(ctx, res.User.ID, good); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := env.engine.SetupTOTP(ctx, res.User.ID); !errors.Is(err, ErrTOTPAlreadyEnabled) {
		t.Fatalf("expected ErrTOTPAlreadyEnabled, got %v", err)
	}

	env.clock.Advance(30 * time.Second)
	if err := env.engine.DisableTOTP(ctx, res.User.ID, totpCode(t, setup.Secret, env.clock.Now())); err != nil {
		t.Fatalf("disable: %v", err)
	}
	stored, _ = env.accounts.GetByID(ctx, res.User.ID)
	if stored.TOTPState() != account.TOTPDisabled || stored.TOTPSecret != "" {
		t.Fatalf("expected secret cleared")
	}
	if err := env.engine.DisableTOTP(ctx, res.User.ID, "123456"); !errors.Is(err, ErrTOTPNotEnabled) {
		t.Fatalf("expected ErrTOTPNotEnabled, got %v", err)
	}
}

func TestEnableTOTPRefusesReplacedSecret(t *testing.T) {
	var store *resettingAccounts
	env := newTestEnv(t, withAccountWrapper(func(inner *memstore.Accounts) account.Store {
		store = &resettingAccounts{Store: inner, inner: inner, secret: "KRSXG5CTMVRXEZLUKN2XAZLSKNSWG4TF"}
		return store
	}))
	res := env.signup(t, "amani@hub.example")
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	store.armed = true
	err = env.engine.EnableTOTP(ctx, res.User.ID, totpCode(t, setup.Secret, env.clock.Now()))
	if !errors.Is(err, ErrInvalidTOTPCode) {
		t.Fatalf("expected ErrInvalidTOTPCode, got %v", err)
	}

	stored, _ := env.accounts.GetByID(ctx, res.User.ID)
	if stored.TOTPState() != account.TOTPPending || stored.TOTPSecret != store.secret {
		t.Fatalf("replacement secret must stay pending, got state=%v secret=%q", stored.TOTPState(), stored.TOTPSecret)
	}
}

func TestEnableTOTPWithoutSetup(t *testing.T) {
	env := newTestEnv(t)
	res := env.signup(t, "amani@hub.example")

	if err := env.engine.EnableTOTP(context.Background(), res.User.ID, "123456"); !errors.Is(err, ErrTOTPNotPending) {
		t.Fatalf("expected ErrTOTPNotPending, got %v", err)
	}
}

func TestTOTPLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	res := env.signup(t, "amani@hub.example")
	secret := env.enableTOTP(t, res.User.ID)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, "amani@hub.example", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !login.Require2FA || login.TempToken == "" || login.UserID != res.User.ID {
		t.Fatalf("expected 2FA challenge, got %+v", login)
	}
	if login.Tokens.AccessToken != "" {
		t.Fatalf("no final tokens before second factor")
	}

	if _, err := env.engine.Validate(ctx, login.TempToken, ModeInherit); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("temp token must not validate as access, got %v", err)
	}

	final, err := env.engine.VerifyTOTPLogin(ctx, TOTPVerifyInput{
		Code:      totpCode(t, secret, env.clock.Now()),
		TempToken: login.TempToken,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if final.Tokens.AccessToken == "" || !final.User.TwoFactorEnabled {
		t.Fatalf("unexpected final result %+v", final)
	}
}

func TestVerifyTOTPLoginFailuresAreUniform(t *testing.T) {
	env := newTestEnv(t)
	res := env.signup(t, "amani@hub.example")
	secret := env.enableTOTP(t, res.User.ID)
	other := env.signup(t, "other@hub.example")
	ctx := context.Background()

	login, err := env.engine.Login(ctx, "amani@hub.example", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	code := totpCode(t, secret, env.clock.Now())

	cases := []TOTPVerifyInput{
		{Code: code, TempToken: "garbage"},
		{Code: code, TempToken: login.TempToken, UserID: other.User.ID},
		{Code: code, UserID: 424242},
		{Code: code, UserID: other.User.ID},
	}
	for i, in := range cases {
		if _, err := env.engine.VerifyTOTPLogin(ctx, in); !errors.Is(err, ErrInvalidTOTPCode) {
			t.Fatalf("case %d: expected ErrInvalidTOTPCode, got %v", i, err)
		}
	}

	if _, err := env.engine.VerifyTOTPLogin(ctx, TOTPVerifyInput{Code: code}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without identity, got %v", err)
	}
}

func TestVerifyTOTPLoginThrottlesPerAccount(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *Config) { c.TOTP.MaxAttempts = 3 }))
	res := env.signup(t, "amani@hub.example")
	secret := env.enableTOTP(t, res.User.ID)
	ctx := context.Background()

	good := totpCode(t, secret, env.clock.Now())
	bad := "000000"
	if bad == good {
		bad = "111111"
	}
	for i := 0; i < 3; i++ {
		if _, err := env.engine.VerifyTOTPLogin(ctx, TOTPVerifyInput{Code: bad, UserID: res.User.ID}); !errors.Is(err, ErrInvalidTOTPCode) {
			t.Fatalf("attempt %d: expected ErrInvalidTOTPCode, got %v", i, err)
		}
	}

	if _, err := env.engine.VerifyTOTPLogin(ctx, TOTPVerifyInput{Code: good, UserID: res.User.ID}); !errors.Is(err, ErrInvalidTOTPCode) {
		t.Fatalf("throttled account must reject even a valid code, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricTOTPRateLimited]; got != 1 {
		t.Fatalf("expected 1 throttled attempt, got %d", got)
	}

	env.redis.FastForward(time.Minute + time.Second)
	if _, err := env.engine.VerifyTOTPLogin(ctx, TOTPVerifyInput{Code: good, UserID: res.User.ID}); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestVerifyTOTPLoginRejectsReplay(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *Config) { c.TOTP.EnforceReplayProtection = true }))
	res := env.signup(t, "amani@hub.example")
	secret := env.enableTOTP(t, res.User.ID)
	ctx := context.Background()

	code := totpCode(t, secret, env.clock.Now())
	if _, err := env.engine.VerifyTOTPLogin(ctx, TOTPVerifyInput{Code: code, UserID: res.User.ID}); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if _, err := env.engine.VerifyTOTPLogin(ctx, TOTPVerifyInput{Code: code, UserID: res.User.ID}); !errors.Is(err, ErrInvalidTOTPCode) {
		t.Fatalf("replay: expected ErrInvalidTOTPCode, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricTOTPReplay]; got != 1 {
		t.Fatalf("expected 1 replay, got %d", got)
	}
}

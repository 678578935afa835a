package hubauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/internal/limiters"
	"github.com/swahilipot/hubauth/internal/rate"
	"github.com/swahilipot/hubauth/jwt"
)

// Login verifies credentials and either completes the login or, when TOTP
// is enabled, returns a second-factor challenge.
//
// Failures:
//   - unknown email or wrong password: *CredentialsError / ErrInvalidCredentials
//   - locked account, or the failure that locks it: *LockedError
//   - upstream throttle: ErrRateLimited
//
// Wrong passwords are counted by one atomic store update, so concurrent
// attempts cannot slip past the threshold.
func (e *Engine) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email = account.NormalizeEmail(email)
	if email == "" || pw == "" {
		return nil, invalid("Email and password are required")
	}

	if err := e.allow(ctx, rate.ActionLogin, email, clientIPFromContext(ctx)); err != nil {
		return nil, err
	}

	a, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			_, _ = e.hasher.Verify(pw, e.dummyHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, 0, 0, false, ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	now := e.clock()
	if status := e.lockout.Status(a.LockedUntil, now); status.Locked {
		return nil, e.lockedLogin(ctx, a.ID, status)
	}

	ok, err := e.hasher.Verify(pw, a.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, e.recordFailure(ctx, a.ID)
	}

	if err := e.accounts.ResetLoginFailures(ctx, a.ID, now); err != nil {
		if errors.Is(err, account.ErrLocked) {
			// A concurrent failure locked the account after it was loaded.
			return nil, e.lockedLoginReload(ctx, a.ID, now)
		}
		return nil, fmt.Errorf("reset login failures: %w", err)
	}
	a.FailedLoginAttempts = 0
	a.LockedUntil = time.Time{}
	e.maybeUpgradeHash(ctx, a, pw)

	if a.TOTPState() == account.TOTPEnabled {
		temp, _, err := e.jwt.Issue(jwt.KindTemp, jwt.Subject{AccountID: a.ID})
		if err != nil {
			return nil, fmt.Errorf("issue temp token: %w", err)
		}
		e.metricInc(MetricTOTPRequired)
		e.emitAudit(ctx, auditEventTOTPRequired, a.ID, 0, true, nil, nil)
		return &LoginResult{Require2FA: true, TempToken: temp, UserID: a.ID}, nil
	}

	tokens, err := e.completeLogin(ctx, a)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, a.ID, tokens.SessionID, true, nil, nil)

	return &LoginResult{User: userView(a), Tokens: tokens}, nil
}

func (e *Engine) lockedLogin(ctx context.Context, accountID int64, status limiters.LockStatus) error {
	e.metricInc(MetricLoginLocked)
	lockErr := &LockedError{
		Until:            status.Until,
		RemainingMinutes: status.RemainingMinutes,
		Duration:         e.lockout.Duration,
	}
	e.emitAudit(ctx, auditEventLoginFailure, accountID, 0, false, lockErr, nil)
	return lockErr
}

// lockedLoginReload rereads the lock after the conditional reset refused to
// clear it.
func (e *Engine) lockedLoginReload(ctx context.Context, accountID int64, now time.Time) error {
	a, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	status := e.lockout.Status(a.LockedUntil, now)
	if !status.Locked {
		// The lock expired in between; still refuse this attempt.
		status = limiters.LockStatus{Locked: true, Until: now, RemainingMinutes: 1}
	}
	return e.lockedLogin(ctx, accountID, status)
}

// recordFailure applies the atomic failure update and converts its result
// into the caller-facing error.
func (e *Engine) recordFailure(ctx context.Context, accountID int64) error {
	now := e.clock()
	state, err := e.accounts.RecordLoginFailure(ctx, accountID, e.lockout.Rule(), now)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	e.metricInc(MetricLoginFailure)

	outcome := e.lockout.Outcome(state, now)
	if outcome.JustLocked {
		e.metricInc(MetricAccountLocked)
		lockErr := &LockedError{
			Until:            outcome.Until,
			RemainingMinutes: limiters.RemainingMinutes(outcome.Until, now),
			JustLocked:       true,
			Duration:         e.lockout.Duration,
		}
		e.emitAudit(ctx, auditEventAccountLocked, accountID, 0, false, lockErr, nil)
		return lockErr
	}

	credErr := &CredentialsError{AttemptsRemaining: -1}
	if e.config.Lockout.RevealRemaining {
		credErr.AttemptsRemaining = outcome.AttemptsRemaining
	}
	e.emitAudit(ctx, auditEventLoginFailure, accountID, 0, false, credErr, nil)
	return credErr
}

func (e *Engine) maybeUpgradeHash(ctx context.Context, a *account.Account, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	upgrade, err := e.hasher.NeedsUpgrade(a.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return
	}
	if err := e.accounts.UpdatePasswordHash(ctx, a.ID, hash, e.clock()); err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", "account_id", a.ID, "error", err)
		return
	}
	a.PasswordHash = hash
}

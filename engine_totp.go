package hubauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/internal/limiters"
	"github.com/swahilipot/hubauth/internal/rate"
	"github.com/swahilipot/hubauth/jwt"
)

// SetupTOTP stores a new pending secret for accountID and returns it with
// its otpauth URL and QR code. A pending secret from an earlier call is
// replaced.
func (e *Engine) SetupTOTP(ctx context.Context, accountID int64) (*TOTPSetup, error) {
	a, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.TOTPState() == account.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	key, err := e.totp.Generate(a.Email)
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	qr, err := qrDataURL(key)
	if err != nil {
		return nil, fmt.Errorf("render totp qr code: %w", err)
	}
	if err := e.accounts.SetTOTPSecret(ctx, a.ID, key.Secret(), e.clock()); err != nil {
		return nil, fmt.Errorf("store totp secret: %w", err)
	}

	e.emitAudit(ctx, auditEventTOTPSetup, a.ID, 0, true, nil, nil)
	return &TOTPSetup{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCode:     qr,
	}, nil
}

// EnableTOTP confirms the pending secret with a current code.
func (e *Engine) EnableTOTP(ctx context.Context, accountID int64, code string) error {
	code, ok := e.totp.NormalizeCode(code)
	if !ok {
		return invalid(fmt.Sprintf("Code must be %d digits", e.config.TOTP.Digits))
	}
	a, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	switch a.TOTPState() {
	case account.TOTPEnabled:
		return ErrTOTPAlreadyEnabled
	case account.TOTPDisabled:
		return ErrTOTPNotPending
	}

	if !e.totp.Validate(code, a.TOTPSecret, e.clock()) {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, a.ID, 0, false, ErrInvalidTOTPCode, nil)
		return ErrInvalidTOTPCode
	}
	if err := e.claimCode(ctx, a.ID, code); err != nil {
		return err
	}
	if err := e.accounts.EnableTOTP(ctx, a.ID, a.TOTPSecret, e.clock()); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			// The pending secret was replaced after the code was checked.
			return ErrInvalidTOTPCode
		}
		return fmt.Errorf("enable totp: %w", err)
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, auditEventTOTPEnabled, a.ID, 0, true, nil, nil)
	return nil
}

// DisableTOTP turns the second factor off after checking a current code.
func (e *Engine) DisableTOTP(ctx context.Context, accountID int64, code string) error {
	code, ok := e.totp.NormalizeCode(code)
	if !ok {
		return invalid(fmt.Sprintf("Code must be %d digits", e.config.TOTP.Digits))
	}
	a, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if a.TOTPState() != account.TOTPEnabled {
		return ErrTOTPNotEnabled
	}

	if !e.totp.Validate(code, a.TOTPSecret, e.clock()) {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, a.ID, 0, false, ErrInvalidTOTPCode, nil)
		return ErrInvalidTOTPCode
	}
	if err := e.claimCode(ctx, a.ID, code); err != nil {
		return err
	}
	if err := e.accounts.DisableTOTP(ctx, a.ID, e.clock()); err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, a.ID, 0, true, nil, nil)
	return nil
}

// VerifyTOTPLogin completes a login that returned Require2FA. Every
// rejection other than upstream throttling is ErrInvalidTOTPCode.
func (e *Engine) VerifyTOTPLogin(ctx context.Context, in TOTPVerifyInput) (*LoginResult, error) {
	code, ok := e.totp.NormalizeCode(in.Code)
	in.TempToken = strings.TrimSpace(in.TempToken)
	if in.Code == "" || (in.TempToken == "" && in.UserID == 0) {
		return nil, invalid("Code and userId or tempToken are required")
	}

	if err := e.allow(ctx, rate.ActionTOTPVerify, clientIPFromContext(ctx)); err != nil {
		return nil, err
	}

	accountID := in.UserID
	if in.TempToken != "" {
		claims, err := e.jwt.Parse(jwt.KindTemp, in.TempToken)
		if err != nil {
			return nil, e.totpLoginFailed(ctx, 0, "temp_token")
		}
		if in.UserID != 0 && in.UserID != claims.UID {
			return nil, e.totpLoginFailed(ctx, claims.UID, "subject_mismatch")
		}
		accountID = claims.UID
	}
	if !ok {
		return nil, e.totpLoginFailed(ctx, accountID, "format")
	}

	if err := e.totpLimiter.Check(ctx, accountID); err != nil {
		if errors.Is(err, limiters.ErrTOTPRateLimited) {
			e.metricInc(MetricTOTPRateLimited)
			return nil, e.totpLoginFailed(ctx, accountID, "throttled")
		}
		e.logger.WarnContext(ctx, "totp limiter unavailable", "account_id", accountID, "error", err)
	}

	a, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, e.totpLoginFailed(ctx, 0, "unknown_account")
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if a.TOTPState() != account.TOTPEnabled || !e.totp.Validate(code, a.TOTPSecret, e.clock()) {
		if err := e.totpLimiter.RecordFailure(ctx, a.ID); err != nil && !errors.Is(err, limiters.ErrTOTPRateLimited) {
			e.logger.WarnContext(ctx, "totp limiter unavailable", "account_id", a.ID, "error", err)
		}
		return nil, e.totpLoginFailed(ctx, a.ID, "code")
	}
	if err := e.claimCode(ctx, a.ID, code); err != nil {
		return nil, err
	}
	if err := e.totpLimiter.Reset(ctx, a.ID); err != nil {
		e.logger.WarnContext(ctx, "totp limiter reset failed", "account_id", a.ID, "error", err)
	}

	tokens, err := e.completeLogin(ctx, a)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTOTPSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventTOTPSuccess, a.ID, tokens.SessionID, true, nil, nil)
	return &LoginResult{User: userView(a), Tokens: tokens}, nil
}

// claimCode rejects a code that was already accepted inside its window.
// Without a replay guard every valid code is accepted.
func (e *Engine) claimCode(ctx context.Context, accountID int64, code string) error {
	err := e.replay.Claim(ctx, accountID, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrTOTPReplay):
		e.metricInc(MetricTOTPReplay)
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, accountID, 0, false, ErrInvalidTOTPCode, func() map[string]string {
			return map[string]string{"reason": "replay"}
		})
		return ErrInvalidTOTPCode
	default:
		e.logger.ErrorContext(ctx, "totp replay guard unavailable", "account_id", accountID, "error", err)
		return ErrInvalidTOTPCode
	}
}

func (e *Engine) totpLoginFailed(ctx context.Context, accountID int64, reason string) error {
	e.metricInc(MetricTOTPFailure)
	e.emitAudit(ctx, auditEventTOTPFailure, accountID, 0, false, ErrInvalidTOTPCode, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrInvalidTOTPCode
}

func (e *Engine) loadAccount(ctx context.Context, accountID int64) (*account.Account, error) {
	a, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	return a, nil
}

package hubauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/internal"
	"github.com/swahilipot/hubauth/internal/rate"
)

// VerifyEmail consumes a verification token. Unknown, expired and already
// used tokens all return ErrInvalidVerificationToken.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalid("Verification token is required")
	}
	if !internal.IsHexToken(token, internal.OpaqueTokenBytes) {
		e.metricInc(MetricEmailVerificationFailure)
		return nil, ErrInvalidVerificationToken
	}

	a, err := e.accounts.ConsumeVerificationToken(ctx, internal.HashToken(token), e.clock())
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerifyFailure, 0, 0, false, ErrInvalidVerificationToken, nil)
			return nil, ErrInvalidVerificationToken
		}
		return nil, fmt.Errorf("consume verification token: %w", err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerified, a.ID, 0, true, nil, nil)

	u := userView(a)
	return &u, nil
}

// ResendVerification issues a fresh verification token. Unknown addresses
// succeed silently. Verified accounts get ErrEmailAlreadyVerified unless
// EmailVerification.UniformResend is set.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	email, err := normalizeEmailInput(email)
	if err != nil {
		return err
	}
	if err := e.allow(ctx, rate.ActionResend, email, clientIPFromContext(ctx)); err != nil {
		return err
	}

	a, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}
	if a.EmailVerified {
		if e.config.EmailVerification.UniformResend {
			return nil
		}
		return ErrEmailAlreadyVerified
	}

	token, err := e.newVerificationToken(ctx, a.ID)
	if err != nil {
		return err
	}
	e.notifyErr(ctx, "verification", a.ID, e.notifier.SendVerification(ctx, a.Email, a.FullName, token))

	e.metricInc(MetricVerificationResent)
	e.emitAudit(ctx, auditEventVerificationResent, a.ID, 0, true, nil, nil)
	return nil
}

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

// ForgotPassword stores a reset token and queues the reset email. The result
// is the same whether or not the address is registered.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	email, err := normalizeEmailInput(email)
	if err != nil {
		return err
	}
	if err := e.allow(ctx, rate.ActionForgotPassword, email, clientIPFromContext(ctx)); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)

	a, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}

	token, err := internal.NewOpaqueToken(internal.OpaqueTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	now := e.clock()
	if err := e.accounts.SetResetToken(ctx, a.ID, internal.HashToken(token), now.Add(e.config.PasswordReset.TokenTTL), now); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	e.notifyErr(ctx, "password_reset", a.ID, e.notifier.SendPasswordReset(ctx, a.Email, a.FullName, token))
	e.emitAudit(ctx, auditEventPasswordResetRequest, a.ID, 0, true, nil, nil)
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The same
// update clears any lockout. With PasswordReset.RevokeSessions every session
// of the account is revoked afterwards.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return invalid("Token and new password are required")
	}
	if err := e.checkPasswordPolicy(newPassword); err != nil {
		return err
	}
	if !internal.IsHexToken(token, internal.OpaqueTokenBytes) {
		e.metricInc(MetricPasswordResetFailure)
		return ErrInvalidResetToken
	}

	hash, err := e.hashPassword(newPassword)
	if err != nil {
		return err
	}

	a, err := e.accounts.ConsumeResetToken(ctx, internal.HashToken(token), hash, e.clock())
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditEventPasswordResetFailure, 0, 0, false, ErrInvalidResetToken, nil)
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	var revoked int64
	if e.config.PasswordReset.RevokeSessions && e.sessions != nil {
		revoked, err = e.sessions.RevokeAll(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		e.metrics.Add(MetricSessionRevoked, uint64(revoked))
	}

	e.notifyErr(ctx, "password_changed", a.ID, e.notifier.SendPasswordChanged(ctx, a.Email, a.FullName))

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetComplete, a.ID, 0, true, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": fmt.Sprint(revoked)}
	})
	return nil
}

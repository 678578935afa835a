package hubauth

import (
	"context"
	"errors"

	"github.com/swahilipot/hubauth/internal/audit"
)

const (
	auditEventSignupSuccess         = "signup_success"
	auditEventSignupFailure         = "signup_failure"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventAccountLocked         = "account_locked"
	auditEventRateLimited           = "rate_limited"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshFailure        = "refresh_failure"
	auditEventEmailVerified         = "email_verified"
	auditEventEmailVerifyFailure    = "email_verification_failure"
	auditEventVerificationResent    = "verification_resent"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetComplete = "password_reset_complete"
	auditEventPasswordResetFailure  = "password_reset_failure"
	auditEventTOTPRequired          = "totp_required"
	auditEventTOTPSetup             = "totp_setup"
	auditEventTOTPEnabled           = "totp_enabled"
	auditEventTOTPDisabled          = "totp_disabled"
	auditEventTOTPSuccess           = "totp_success"
	auditEventTOTPFailure           = "totp_failure"
	auditEventSessionRevoked        = "session_revoked"
	auditEventSessionsRevokedAll    = "sessions_revoked_all"
)

// auditErrorCode maps engine errors to stable strings for the Error field.
func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrReservedEmail):
		return "reserved_email"
	case errors.Is(err, ErrRefreshTokenExpired):
		return "refresh_expired"
	case errors.Is(err, ErrRefreshTokenInvalid):
		return "refresh_invalid"
	case errors.Is(err, ErrInvalidVerificationToken), errors.Is(err, ErrInvalidResetToken):
		return "invalid_token"
	case errors.Is(err, ErrInvalidTOTPCode):
		return "totp_invalid"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	default:
		return "internal"
	}
}

// emitAudit builds the event only when auditing is on; metadata is lazy for
// the same reason.
func (e *Engine) emitAudit(ctx context.Context, eventType string, accountID, sessionID int64, success bool, err error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.Event{
		Timestamp: e.clock(),
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Error:     auditErrorCode(err),
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	e.audit.Emit(ctx, event)
}

package hubauth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation wraps input that fails shape checks. The wrapped message
	// is safe to return to clients.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked is matched by *LockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrEmailTaken is returned by Signup for a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrReservedEmail is returned by Signup for configured administrative
	// addresses.
	ErrReservedEmail = errors.New("cannot use admin email for signup")
	// ErrRateLimited is returned when an upstream fixed window is exhausted.
	ErrRateLimited = errors.New("too many requests")

	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrEmailAlreadyVerified     = errors.New("email is already verified")
	ErrInvalidResetToken        = errors.New("invalid or expired password reset token")

	ErrRefreshTokenInvalid = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// ErrUnauthorized is returned by Validate for any unusable access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStrictBackendDown is returned by strict validation when the session
	// store cannot be consulted.
	ErrStrictBackendDown = errors.New("session validation backend unavailable")

	// ErrInvalidTOTPCode is the single error surfaced by every failed second
	// factor operation.
	ErrInvalidTOTPCode    = errors.New("invalid code")
	ErrTOTPAlreadyEnabled = errors.New("2FA is already enabled")
	ErrTOTPNotPending     = errors.New("2FA setup has not been started")
	ErrTOTPNotEnabled     = errors.New("2FA is not enabled")

	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionTrackingDisabled is returned by session operations when no
	// session store is configured.
	ErrSessionTrackingDisabled = errors.New("session tracking disabled")
	ErrEngineNotReady          = errors.New("engine not initialized")
)

// LockedError reports a locked account. JustLocked is set when the failure
// being reported is the one that crossed the threshold.
type LockedError struct {
	Until            time.Time
	RemainingMinutes int
	JustLocked       bool
	Duration         time.Duration
}

func (e *LockedError) Error() string {
	if e.JustLocked {
		return fmt.Sprintf("Too many failed attempts. Account locked for %d minutes.", int(e.Duration/time.Minute))
	}
	return fmt.Sprintf("Account temporarily locked due to too many failed attempts. Try again in %d minute(s).", e.RemainingMinutes)
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// CredentialsError is a wrong-password failure that did not lock the
// account. AttemptsRemaining is negative when the count is withheld.
type CredentialsError struct {
	AttemptsRemaining int
}

func (e *CredentialsError) Error() string {
	if e.AttemptsRemaining < 0 {
		return ErrInvalidCredentials.Error()
	}
	return fmt.Sprintf("Invalid email or password. %d attempt(s) remaining before lockout.", e.AttemptsRemaining)
}

func (e *CredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// validationError carries a client-facing message and matches ErrValidation.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &validationError{msg: msg}
}

package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no account (or no live token) matches.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned by Create when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrLocked is returned by ResetLoginFailures when a lock is in force.
	ErrLocked = errors.New("account locked")
)

// Role is the coarse authorization role carried in access tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// TOTPState is the second-factor lifecycle state of an account.
type TOTPState uint8

const (
	TOTPDisabled TOTPState = iota
	TOTPPending
	TOTPEnabled
)

// Account is the persisted credential record.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	Department   string
	Role         Role

	EmailVerified bool
	TOTPSecret    string
	TOTPEnabled   bool

	FailedLoginAttempts int
	LockedUntil         time.Time

	VerificationTokenHash string
	VerificationExpires   time.Time
	ResetTokenHash        string
	ResetExpires          time.Time
	PasswordResetAt       time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TOTPState derives the second-factor state from the stored fields.
func (a *Account) TOTPState() TOTPState {
	switch {
	case a == nil || a.TOTPSecret == "":
		return TOTPDisabled
	case a.TOTPEnabled:
		return TOTPEnabled
	default:
		return TOTPPending
	}
}

// NewAccount carries the fields needed to create an account.
type NewAccount struct {
	Email        string
	PasswordHash string
	FullName     string
	Department   string
	Role         Role
	CreatedAt    time.Time
}

// LockoutRule parameterizes the atomic failure update.
type LockoutRule struct {
	Threshold int
	Duration  time.Duration
}

// FailureState is the counter and lock deadline after a failure was recorded.
// LockedUntil is zero when the account is not locked.
type FailureState struct {
	Attempts    int
	LockedUntil time.Time
}

// Store persists accounts. All timestamps are supplied by the caller in UTC.
type Store interface {
	Create(ctx context.Context, in NewAccount) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)

	// RecordLoginFailure increments the failure counter and locks the account
	// when the counter reaches rule.Threshold. A lock that has already expired
	// at now restarts the counter at one.
	RecordLoginFailure(ctx context.Context, id int64, rule LockoutRule, now time.Time) (FailureState, error)
	// ResetLoginFailures zeroes the counter and clears an expired lock. When
	// the account is locked at now nothing changes and ErrLocked is returned,
	// so a lock set by a concurrent failure is never erased.
	ResetLoginFailures(ctx context.Context, id int64, now time.Time) error

	SetVerificationToken(ctx context.Context, id int64, tokenHash string, expires, now time.Time) error
	// ConsumeVerificationToken marks the matching account verified and clears
	// the token. Unknown or expired digests return ErrNotFound.
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*Account, error)

	SetResetToken(ctx context.Context, id int64, tokenHash string, expires, now time.Time) error
	// ConsumeResetToken replaces the password hash, clears the token and the
	// lockout state, and stamps PasswordResetAt. Unknown or expired digests
	// return ErrNotFound.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*Account, error)

	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string, now time.Time) error

	// SetTOTPSecret stores a pending secret and leaves TOTP disabled.
	SetTOTPSecret(ctx context.Context, id int64, secret string, now time.Time) error
	// EnableTOTP flips the enabled flag only while the stored secret equals
	// secret. A missing account or a replaced secret returns ErrNotFound.
	EnableTOTP(ctx context.Context, id int64, secret string, now time.Time) error
	// DisableTOTP clears the flag and the secret.
	DisableTOTP(ctx context.Context, id int64, now time.Time) error
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NextFailureState is the reference transition applied by RecordLoginFailure.
// Stores that serialize access in process (memstore) call it under their lock;
// SQL stores express the same transition in one UPDATE statement.
func NextFailureState(attempts int, lockedUntil time.Time, rule LockoutRule, now time.Time) FailureState {
	if !lockedUntil.IsZero() && !lockedUntil.After(now) {
		attempts = 0
		lockedUntil = time.Time{}
	}
	attempts++
	if attempts >= rule.Threshold {
		lockedUntil = now.Add(rule.Duration)
	}
	return FailureState{Attempts: attempts, LockedUntil: lockedUntil}
}

package limiters

import (
	"errors"
	"time"

	"github.com/swahilipot/hubauth/account"
)

// LockoutPolicy interprets lockout state. Counting itself happens in the
// account store as one atomic update; the policy only reads the result.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockStatus is the lock state of an account at a point in time.
type LockStatus struct {
	Locked           bool
	Until            time.Time
	RemainingMinutes int
}

// FailureOutcome describes what a recorded failure means to the caller.
type FailureOutcome struct {
	// JustLocked is true when the update left the account locked.
	JustLocked        bool
	Until             time.Time
	AttemptsRemaining int
}

// Validate rejects non-positive thresholds and durations.
func (p LockoutPolicy) Validate() error {
	if p.Threshold <= 0 {
		return errors.New("lockout threshold must be > 0")
	}
	if p.Duration <= 0 {
		return errors.New("lockout duration must be > 0")
	}
	return nil
}

// Rule returns the store-level parameters for RecordLoginFailure.
func (p LockoutPolicy) Rule() account.LockoutRule {
	return account.LockoutRule{Threshold: p.Threshold, Duration: p.Duration}
}

// Status evaluates lockedUntil lazily against now. An expired lock reads as
// unlocked without any write.
func (p LockoutPolicy) Status(lockedUntil, now time.Time) LockStatus {
	if lockedUntil.IsZero() || !lockedUntil.After(now) {
		return LockStatus{}
	}
	return LockStatus{
		Locked:           true,
		Until:            lockedUntil,
		RemainingMinutes: RemainingMinutes(lockedUntil, now),
	}
}

// Outcome classifies the state returned by the atomic failure update.
func (p LockoutPolicy) Outcome(state account.FailureState, now time.Time) FailureOutcome {
	if !state.LockedUntil.IsZero() && state.LockedUntil.After(now) {
		return FailureOutcome{JustLocked: true, Until: state.LockedUntil}
	}
	remaining := p.Threshold - state.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return FailureOutcome{AttemptsRemaining: remaining}
}

// RemainingMinutes rounds the time until `until` up to whole minutes, never
// reporting less than one.
func RemainingMinutes(until, now time.Time) int {
	d := until.Sub(now)
	minutes := int(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

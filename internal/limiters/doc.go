// Package limiters holds the account-level defenses that sit next to the
// credential checks.
//
// # Limiters
//
//   - [LockoutPolicy]: interprets the atomic failure counter kept by the
//     account store (threshold, lock window, minutes remaining).
//   - [TOTPLimiter]: Redis fixed-window throttle for second-factor attempts.
//   - [ReplayGuard]: Redis SET NX memory of accepted TOTP codes.
//
// Redis-backed limiters are nil-safe: calling any method on a nil receiver
// returns nil.
//
// # What this package must NOT do
//
//   - Count login failures itself. The counter lives on the account row so
//     that it is updated atomically with the lock deadline.
//   - Import hubauth.
package limiters

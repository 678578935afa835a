// Package hubauth is the authentication engine of the hub backend: account
// credentials with failed-login lockout, signed access/refresh/temp tokens,
// opaque single-use verification and reset tokens, TOTP second factor and
// an optional session registry.
//
// Engine methods are safe for concurrent use after [Builder.Build]. The
// engine keeps no per-account state in memory; lockout counters and token
// digests live in the [account.Store], sessions in the [session.Store] and
// upstream throttles in Redis.
//
// # Lockout
//
// A wrong password is recorded with one atomic store update that increments
// the counter and, when it reaches Lockout.Threshold, sets the lock deadline.
// Concurrent failures therefore cannot exceed the threshold unnoticed. A
// successful login clears both.
//
// # Validation modes
//
// ModeJWTOnly trusts a valid signature until exp. ModeStrict additionally
// requires the session named by the sid claim to be active, so revocation
// takes effect immediately for session-bound tokens.
package hubauth

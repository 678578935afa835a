// Package internal contains helpers private to hubauth: opaque token minting
// and hashing, and device descriptor normalization.
//
// # Sub-packages
//
//   - async: generic bounded dispatcher
//   - audit: event dispatch and sinks
//   - limiters: lockout policy, TOTP attempt throttle and replay guard
//   - rate: Redis fixed-window limits in front of public endpoints
//   - config: server configuration (YAML + environment)
//   - logging: slog construction for the server binary
//
// Callers store [HashToken] output, never the raw token.
package internal

// Package audit implements async event dispatching for security-relevant
// operations (logins, lockouts, token consumption, session revocation).
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered relay over internal/async with drop-if-full or
//     block-if-full semantics.
//   - [Event]: structured record with timestamp, type, account, session,
//     client address and metadata.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the engine does that.
//   - Carry secrets (tokens, codes, passwords) in Metadata.
package audit

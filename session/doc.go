// Package session provides the multi-device session registry: creation of
// opaque per-device session records, listing, scoped revocation and purge of
// dead rows.
//
// # Trust model
//
// Session tokens are opaque random values stored only as SHA-256 digests.
// They are independent of the signed access and refresh tokens; the engine
// may bind a signed token to a session by id, but verification of one never
// requires the other.
//
// # Architecture boundaries
//
// This package owns the [Store] contract, the [Session] model, the [Registry]
// service and the background [Janitor]. It does NOT interpret JWTs or make
// authentication decisions.
//
// # What this package must NOT do
//
//   - Import hubauth, jwt, or any storage driver.
//   - Reactivate a revoked session.
//   - Report a foreign account's session as anything other than not found.
package session

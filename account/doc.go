// Package account defines the credential record and the store contract the
// hubauth engine relies on.
//
// # Atomicity
//
// [Store.RecordLoginFailure] must apply increment, threshold check and lock
// assignment as one storage-level operation. Implementations must never read
// the counter, compute in application code, and write it back.
//
// Single-use tokens are consumed with a conditional update that matches the
// token digest and an unexpired deadline in the same statement, so two
// concurrent consumers cannot both succeed.
//
// # What this package must NOT do
//
//   - Hash passwords or mint tokens (callers hand in digests).
//   - Import hubauth or any storage driver.
package account

// Package password implements password hashing and verification.
//
// [Bcrypt] is the default at cost 12. [Argon2] produces Argon2id hashes in
// PHC format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Multi] dispatches verification on the hash prefix and reports, through
// NeedsUpgrade, hashes that should be re-hashed after the next successful
// login.
//
// The package never stores passwords and does not enforce length or
// composition rules; the engine does that.
package password

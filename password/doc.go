// Package password provides the one-way hash primitive used for stored
// credentials.
//
// Argon2id is the default. Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt hashes ($2a$, $2b$, $2y$) are accepted for verification so records
// imported from other systems keep working; [Hasher.NeedsRehash] reports them
// as stale so the caller can upgrade on the next successful login.
//
// Policy (length, character classes) is enforced by the caller, not here.
package password

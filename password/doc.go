// Package password hashes and verifies credentials with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Matches never returns an error: a malformed stored hash simply does not
// match. Length and composition rules belong to the caller.
package password

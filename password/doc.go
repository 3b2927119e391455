// Package password hashes and verifies user passwords with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so a
// user store can rehash on the next successful login. The package never
// stores passwords and never logs them.
package password

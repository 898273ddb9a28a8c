// Package user stores accounts and the two per-account fields the trust
// model depends on: the session token version and the one-shot flag that
// trusts the next new device.
//
// Repositories come in postgres, file and memory flavours and are chosen
// with NewUserRepository. PasswordVerifier checks bcrypt hashes and is the
// credential verifier used at login.
package user

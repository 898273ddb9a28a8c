// Package sessions issues and validates device-bound session tokens.
//
// A session token is an HS256 JWT that carries the user id, the device
// fingerprint and the token versions of both records at the time of login.
// Tokens are never stored. A session is accepted only while the stored
// versions still match, so bumping the user's version ends every session of
// the account and bumping a device's version ends the sessions of that
// device. Login also claims the one-shot force trust flag of the account.
package sessions

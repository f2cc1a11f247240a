// Package token issues and verifies the signed, typed bearer tokens used by
// authcore: access, refresh, guest, two_factor, email_verification and
// password_reset.
//
// Verification checks signature, algorithm, expiry, issuer, audience and the
// type discriminator, then consults a shared [RevocationIndex] keyed by jti
// and by session id. Nothing else is read, so verification gives the same
// answer on every instance sharing the index.
package token

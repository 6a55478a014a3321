// Package accounts manages the identity lifecycle of a volunteer platform:
// registration, email verification expiry, password recovery and sign in.
//
// Registration:
//   - RegisterIdentityHandler checks email, username and location in that
//     order, hashes the password and inserts an unverified identity with the
//     default role, notification preferences and social links. The unique
//     constraints of the identities table are the authoritative guard.
//
// Unverified identities:
//   - Reaper arms a one shot timer per new identity and deletes it after the
//     grace period unless it was verified. Run sweeps the store on an interval
//     so identities whose timer was lost to a restart are removed as well.
//
// Password reset:
//   - A six digit code is stored on the identity, a new request overwrites
//     the previous code. Verifying the code returns a short lived proof token
//     bound to that code. Resetting with the proof replaces the credential,
//     clears the code and returns a new session.
//
// Sanitization:
//   - Identity records never leave the package as is. ToView projects them on
//     an allow-listed IdentityView, Sanitize clears the credential and reset
//     fields on a copy.
package accounts

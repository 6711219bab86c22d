// Package activation provisions machine credentials for automation agents.
//
// Provisioning is two calls against the gateway:
//
//  1. Register creates the application and returns a single-use activation
//     token that expires one hour after issuance. Nothing is cached.
//  2. Activate exchanges the token for the permanent secret key. The full
//     record, secret included, is written to the local store immediately
//     because the gateway never returns the secret again.
//
// A token that was already used or has expired is reported by the gateway as
// not found (TokenInvalidOrExpired). A token registered by another operator
// is reported as forbidden (TokenOwnershipMismatch).
//
// List reconciles the local cache against the gateway before returning it,
// removing records whose application no longer exists server-side.
package activation

// Package session manages the operator's platform session.
//
// A session is an OAuth access token issued by the platform's Keycloak realm,
// obtained either through "afctl auth login" (Authorization Code with PKCE
// and a loopback redirect) or supplied directly with --token. It is stored
// in <config dir>/session.json.
//
// SECURITY: the session file is written with 0600 permissions inside a 0700
// directory. Token values are never logged; audit events carry only the
// issuer and subject.
//
// The Manager exposes the session as an oauth2.TokenSource for the gateway
// client. An expired session with a refresh token is refreshed transparently
// and persisted; an expired session without one yields an Unauthenticated
// error so no request leaves the workstation without credentials.
package session

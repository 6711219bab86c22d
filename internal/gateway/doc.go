// Package gateway is the HTTP transport to the authorization gateway.
//
// Every request carries the operator's bearer token (supplied by an
// oauth2.TokenSource) and a fresh X-Request-ID. The client translates
// failures into api.Error kinds:
//
//   - transport failures become NetworkError, with the cause classified as
//     TLS, DNS, timeout or connectivity (ClassifyConnectionError)
//   - a missing or expired session, or an HTTP 401, becomes Unauthenticated
//   - any other status is handed back to the caller, which decides what it
//     means for its endpoint; ResponseError builds the error with the
//     server-supplied detail text
//
// The client never retries.
package gateway

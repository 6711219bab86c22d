package api

import (
	"errors"
	"fmt"
)

// ErrorKind names one class of failure a provisioning operation can end in.
// Every remote-call failure is translated into exactly one kind before it
// reaches the operator.
type ErrorKind string

const (
	// KindUnauthenticated means there is no valid operator session.
	KindUnauthenticated ErrorKind = "Unauthenticated"
	// KindTokenInvalidOrExpired means an activation token was already used or is past expires_at.
	KindTokenInvalidOrExpired ErrorKind = "TokenInvalidOrExpired"
	// KindTokenOwnershipMismatch means the activation token belongs to another operator.
	KindTokenOwnershipMismatch ErrorKind = "TokenOwnershipMismatch"
	// KindUnsupportedMethod means the credential method is unknown or not allowed for the tool.
	KindUnsupportedMethod ErrorKind = "UnsupportedMethod"
	// KindAmbiguousTool means an umbrella family name was given instead of a member.
	KindAmbiguousTool ErrorKind = "AmbiguousTool"
	// KindMissingCredentialInput means api_credentials got neither a token nor a full client pair.
	KindMissingCredentialInput ErrorKind = "MissingCredentialInput"
	// KindNoAuthorizationURL means the initiate response carried no authorization URL.
	KindNoAuthorizationURL ErrorKind = "NoAuthorizationUrl"
	// KindAuthorizationTimeout means the poll bound was exhausted without seeing connected=true.
	KindAuthorizationTimeout ErrorKind = "AuthorizationTimeout"
	// KindAlreadyDisconnected means disconnect was asked for a connection that is not connected.
	KindAlreadyDisconnected ErrorKind = "AlreadyDisconnected"
	// KindNetwork means the gateway could not be reached.
	KindNetwork ErrorKind = "NetworkError"
	// KindNotFound means the referenced connection or application does not exist.
	KindNotFound ErrorKind = "NotFound"
	// KindRemote is any other unexpected gateway status, surfaced with its detail text.
	KindRemote ErrorKind = "RemoteError"
)

// Error is the error type returned by all provisioning flows.
//
// Two Errors compare equal under errors.Is when their kinds match, so callers
// test against the sentinels below:
//
//	if errors.Is(err, api.ErrTokenInvalidOrExpired) {
//	    // ask the operator to register again
//	}
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Detail is the human-readable explanation, usually the server-supplied detail text.
	Detail string
	// StatusCode is the HTTP status that produced the error, if any.
	StatusCode int
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is() to match on kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates an Error of the given kind with a formatted detail.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error of the given kind around cause.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first Error in err's chain, or "" when none.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated        = &Error{Kind: KindUnauthenticated}
	ErrTokenInvalidOrExpired  = &Error{Kind: KindTokenInvalidOrExpired}
	ErrTokenOwnershipMismatch = &Error{Kind: KindTokenOwnershipMismatch}
	ErrUnsupportedMethod      = &Error{Kind: KindUnsupportedMethod}
	ErrAmbiguousTool          = &Error{Kind: KindAmbiguousTool}
	ErrMissingCredentialInput = &Error{Kind: KindMissingCredentialInput}
	ErrNoAuthorizationURL     = &Error{Kind: KindNoAuthorizationURL}
	ErrAuthorizationTimeout   = &Error{Kind: KindAuthorizationTimeout}
	ErrAlreadyDisconnected    = &Error{Kind: KindAlreadyDisconnected}
	ErrNetwork                = &Error{Kind: KindNetwork}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrRemote                 = &Error{Kind: KindRemote}
)

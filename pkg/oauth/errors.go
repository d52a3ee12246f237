package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInsecureContext is returned when a session is created on a host page
	// that is not a secure context.
	ErrInsecureContext = errors.New("oauth: insecure context")

	// ErrInvalidConfiguration is returned when the client configuration is incomplete.
	ErrInvalidConfiguration = errors.New("oauth: invalid configuration")

	// ErrNoFlow is the expected outcome of resolving a page load that carries
	// no authorization response parameters. It is not a failure.
	ErrNoFlow = errors.New("oauth: no authorization flow in progress")

	// ErrAuthorizationIncomplete is returned when the redirect carries response
	// parameters that do not match a stored authorization request.
	ErrAuthorizationIncomplete = errors.New("oauth: authorization incomplete")

	// ErrTokenExchangeFailed is returned when the authorization code could not
	// be exchanged for a token.
	ErrTokenExchangeFailed = errors.New("oauth: token exchange failed")

	// ErrRefreshFailed is returned when a token could not be refreshed.
	ErrRefreshFailed = errors.New("oauth: token refresh failed")

	// ErrRevokeFailed is returned when the revocation endpoint rejected the request.
	ErrRevokeFailed = errors.New("oauth: token revocation failed")

	// ErrNotLoggedIn is returned by operations that need a token when none is held.
	ErrNotLoggedIn = errors.New("oauth: not logged in")
)

// AuthorizationError is an error reported by the authorization server in the
// redirect response (RFC 6749 section 4.1.2.1).
type AuthorizationError struct {
	Code        string
	Description string
	URI         string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	msg := fmt.Sprintf("oauth: authorization server returned %q", e.Code)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.URI != "" {
		msg += " (" + e.URI + ")"
	}
	return msg
}

// IsAuthorizationError reports whether err is or wraps an *AuthorizationError.
func IsAuthorizationError(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}

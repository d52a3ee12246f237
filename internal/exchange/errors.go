package exchange

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

const (
	opExchange = "exchange"
	opRefresh  = "refresh"
	opRevoke   = "revoke"
)

// EndpointError describes a failed call to the token or revocation endpoint.
// It matches oauth.ErrTokenExchangeFailed, oauth.ErrRefreshFailed or
// oauth.ErrRevokeFailed with errors.Is, depending on Op.
type EndpointError struct {
	// Op is "exchange", "refresh" or "revoke".
	Op string

	// StatusCode is zero for transport failures.
	StatusCode int
	Status     string

	// Code and Description come from the server's error response, if any.
	Code        string
	Description string

	// Body is the raw response body, kept when no error code was parsed.
	Body string

	kind  error
	cause error
}

func newEndpointError(op string, kind error, cause error) *EndpointError {
	e := &EndpointError{Op: op, kind: kind, cause: cause}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(cause, &retrieveErr) {
		e.Code = retrieveErr.ErrorCode
		e.Description = retrieveErr.ErrorDescription
		e.Body = strings.TrimSpace(string(retrieveErr.Body))
		if retrieveErr.Response != nil {
			e.StatusCode = retrieveErr.Response.StatusCode
			e.Status = retrieveErr.Response.Status
		}
	}
	return e
}

// Error implements the error interface.
func (e *EndpointError) Error() string {
	return fmt.Sprintf("%v: %s", e.kind, e.summary())
}

// summary describes the failure without the sentinel prefix.
func (e *EndpointError) summary() string {
	var parts []string
	if e.Status != "" {
		parts = append(parts, e.Status)
	} else if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("%d", e.StatusCode))
	}

	switch {
	case e.Code != "" && e.Description != "":
		parts = append(parts, e.Code+": "+e.Description)
	case e.Code != "":
		parts = append(parts, e.Code)
	case e.Body != "":
		parts = append(parts, e.Body)
	}

	if len(parts) == 0 && e.cause != nil {
		return e.cause.Error()
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, ": ")
}

// Is reports whether target is the sentinel for this failure.
func (e *EndpointError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// Unwrap returns the underlying transport or oauth2 error.
func (e *EndpointError) Unwrap() error {
	return e.cause
}

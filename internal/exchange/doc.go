// Package exchange turns verified authorization responses into tokens and
// manages their renewal and revocation.
//
// Token and refresh grants go through golang.org/x/oauth2 as a public
// client (credentials in the request body, no secret). Revocation is an
// RFC 7009 form POST. Every failure wraps one of oauth.ErrTokenExchangeFailed,
// oauth.ErrRefreshFailed or oauth.ErrRevokeFailed and carries the server's
// error text when one was returned.
//
// SECURITY: token values are never logged. Audit events name the client and
// endpoint only.
package exchange

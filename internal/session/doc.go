// Package session is the token lifecycle manager of oauth-session.
//
// A Session holds at most one token for one OAuth client. RedirectToLogin
// starts an authorization request and leaves the page; RestoreLogin, called
// once per page load, completes a returning flow, falls back to the
// persisted token, refreshes it when expired, and persists the outcome.
// Logout revokes and clears.
//
// Protocol failures never abort a restore. They are handed to the error
// handler (see WithErrorHandler) and the session degrades to logged out.
// Only oauth.ErrInsecureContext prevents a session from being created.
//
// The token is persisted under "oauth-token-<client id>" so sessions of
// different clients can share one storage.
package session

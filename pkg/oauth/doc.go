// Package oauth provides the OAuth 2.0 types shared by the oauth-session
// coordinator, token exchanger and session.
//
// # Core Components
//
//   - Token: issued credential with client-observed issuance time and expiry math
//   - ClientConfig: endpoints derived from a server base URL, client identity and scopes
//   - PendingAuthorizationRequest: the state persisted across the redirect round trip
//   - AuthorizationResponse: parameters returned by the authorization server
//   - ParseResponseParams: query-string decoding of the redirect URL
//   - PKCE: Proof Key for Code Exchange generation (RFC 7636)
//
// # Usage
//
//	cfg, err := oauth.NewClientConfig("https://auth.example", "my-client",
//	    []string{"read"}, "", oauth.DefaultEndpointPaths())
//
//	req, err := oauth.NewPendingAuthorizationRequest(cfg)
//
//	params := oauth.ParseResponseParams(currentURL, false)
//	resp, ok := oauth.ResponseFromParams(params)
package oauth

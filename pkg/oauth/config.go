package oauth

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// EndpointPaths are the paths of the server endpoints relative to the base URL.
type EndpointPaths struct {
	Authorize string
	Token     string
	Revoke    string
}

// DefaultEndpointPaths returns the endpoint layout used when none is configured.
func DefaultEndpointPaths() EndpointPaths {
	return EndpointPaths{
		Authorize: "/authorize/",
		Token:     "/token/",
		Revoke:    "/revoke_token/",
	}
}

// ClientConfig is the immutable per-session client configuration.
type ClientConfig struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	RevocationEndpoint    string
	ClientID              string
	Scopes                []string

	// RedirectURI never carries a fragment.
	RedirectURI string
}

// NewClientConfig derives the endpoints from baseURL and returns the client
// configuration. Query and fragment of baseURL are dropped along with any
// trailing slash. Empty entries of paths fall back to DefaultEndpointPaths.
// redirectURI may be empty; the session fills it from the host page.
func NewClientConfig(baseURL, clientID string, scopes []string, redirectURI string, paths EndpointPaths) (ClientConfig, error) {
	base, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return ClientConfig{}, err
	}

	defaults := DefaultEndpointPaths()
	if paths.Authorize == "" {
		paths.Authorize = defaults.Authorize
	}
	if paths.Token == "" {
		paths.Token = defaults.Token
	}
	if paths.Revoke == "" {
		paths.Revoke = defaults.Revoke
	}

	cfg := ClientConfig{
		AuthorizationEndpoint: joinEndpoint(base, paths.Authorize),
		TokenEndpoint:         joinEndpoint(base, paths.Token),
		RevocationEndpoint:    joinEndpoint(base, paths.Revoke),
		ClientID:              clientID,
		Scopes:                append([]string(nil), scopes...),
		RedirectURI:           StripFragment(redirectURI),
	}
	return cfg, nil
}

// NormalizeBaseURL drops query, fragment and trailing slashes from raw.
func NormalizeBaseURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: server URL is required", ErrInvalidConfiguration)
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: invalid server URL: %v", ErrInvalidConfiguration, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: server URL must be absolute: %s", ErrInvalidConfiguration, raw)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// StripFragment removes the fragment from a URI. Redirect URIs must not carry one.
func StripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func joinEndpoint(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// WithRedirectURI returns a copy of c using redirectURI (fragment stripped).
func (c ClientConfig) WithRedirectURI(redirectURI string) ClientConfig {
	c.Scopes = append([]string(nil), c.Scopes...)
	c.RedirectURI = StripFragment(redirectURI)
	return c
}

// ScopeString returns the scopes space-separated, as sent on the wire.
func (c ClientConfig) ScopeString() string {
	return strings.Join(c.Scopes, " ")
}

// Validate checks that the configuration can drive a login.
func (c ClientConfig) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("%w: client ID is required", ErrInvalidConfiguration)
	case c.AuthorizationEndpoint == "":
		return fmt.Errorf("%w: authorization endpoint is required", ErrInvalidConfiguration)
	case c.TokenEndpoint == "":
		return fmt.Errorf("%w: token endpoint is required", ErrInvalidConfiguration)
	}
	return nil
}

// OAuth2Config returns the golang.org/x/oauth2 configuration for this public
// client. Credentials are sent in the request body.
func (c ClientConfig) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: c.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthorizationEndpoint,
			TokenURL:  c.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: c.RedirectURI,
		Scopes:      append([]string(nil), c.Scopes...),
	}
}

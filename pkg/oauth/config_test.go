package oauth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewClientConfig(t *testing.T) {
	tests := []struct {
		name          string
		baseURL       string
		redirectURI   string
		paths         EndpointPaths
		wantAuthorize string
		wantToken     string
		wantRevoke    string
		wantRedirect  string
	}{
		{
			name:          "default paths",
			baseURL:       "https://auth.example",
			redirectURI:   "https://app.example/cb",
			wantAuthorize: "https://auth.example/authorize/",
			wantToken:     "https://auth.example/token/",
			wantRevoke:    "https://auth.example/revoke_token/",
			wantRedirect:  "https://app.example/cb",
		},
		{
			name:          "trailing slash query and fragment stripped",
			baseURL:       "https://auth.example/o/?tenant=x#frag",
			redirectURI:   "https://app.example/cb#section",
			wantAuthorize: "https://auth.example/o/authorize/",
			wantToken:     "https://auth.example/o/token/",
			wantRevoke:    "https://auth.example/o/revoke_token/",
			wantRedirect:  "https://app.example/cb",
		},
		{
			name:          "custom paths",
			baseURL:       "https://auth.example",
			paths:         EndpointPaths{Authorize: "oauth2/auth", Token: "/oauth2/token"},
			wantAuthorize: "https://auth.example/oauth2/auth",
			wantToken:     "https://auth.example/oauth2/token",
			wantRevoke:    "https://auth.example/revoke_token/",
		},
		{
			name:          "absolute endpoint path",
			baseURL:       "https://auth.example",
			paths:         EndpointPaths{Revoke: "https://revoke.example/r"},
			wantAuthorize: "https://auth.example/authorize/",
			wantToken:     "https://auth.example/token/",
			wantRevoke:    "https://revoke.example/r",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewClientConfig(tt.baseURL, "client", []string{"read"}, tt.redirectURI, tt.paths)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAuthorize, cfg.AuthorizationEndpoint)
			assert.Equal(t, tt.wantToken, cfg.TokenEndpoint)
			assert.Equal(t, tt.wantRevoke, cfg.RevocationEndpoint)
			assert.Equal(t, tt.wantRedirect, cfg.RedirectURI)
			assert.Equal(t, "client", cfg.ClientID)
		})
	}
}

func TestNewClientConfig_InvalidBase(t *testing.T) {
	for _, base := range []string{"", "   ", "/relative", "not a url"} {
		_, err := NewClientConfig(base, "c", nil, "", EndpointPaths{})
		assert.True(t, errors.Is(err, ErrInvalidConfiguration), "base=%q", base)
	}
}

func TestClientConfig_Validate(t *testing.T) {
	cfg, err := NewClientConfig("https://auth.example", "", nil, "", EndpointPaths{})
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)

	cfg.ClientID = "c"
	assert.NoError(t, cfg.Validate())
}

func TestClientConfig_WithRedirectURI(t *testing.T) {
	cfg := ClientConfig{ClientID: "c", Scopes: []string{"a"}}
	updated := cfg.WithRedirectURI("https://app/cb#x")

	assert.Equal(t, "https://app/cb", updated.RedirectURI)
	assert.Empty(t, cfg.RedirectURI)
}

func TestClientConfig_OAuth2Config(t *testing.T) {
	cfg := ClientConfig{
		AuthorizationEndpoint: "https://auth.example/authorize/",
		TokenEndpoint:         "https://auth.example/token/",
		ClientID:              "c",
		Scopes:                []string{"a", "b"},
		RedirectURI:           "https://app/cb",
	}
	oc := cfg.OAuth2Config()

	assert.Equal(t, "c", oc.ClientID)
	assert.Empty(t, oc.ClientSecret)
	assert.Equal(t, oauth2.AuthStyleInParams, oc.Endpoint.AuthStyle)
	assert.Equal(t, "https://auth.example/token/", oc.Endpoint.TokenURL)
	assert.Equal(t, "a b", cfg.ScopeString())
}

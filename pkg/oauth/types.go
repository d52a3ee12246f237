package oauth

import (
	"fmt"
	"strings"
	"time"
)

// ResponseTypeCode is the only response type requested by this client.
const ResponseTypeCode = "code"

// DefaultTokenType is assumed when the token endpoint omits token_type.
const DefaultTokenType = "Bearer"

// Token represents an issued OAuth access token. It is treated as immutable:
// refreshing produces a new Token.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`

	// IssuedAt is the client-observed issuance time in unix seconds.
	IssuedAt int64 `json:"issued_at"`

	// ExpiresIn is the token lifetime in seconds. Nil when the server did not
	// send expires_in, in which case the token never expires locally.
	ExpiresIn *int64 `json:"expires_in,omitempty"`
}

// IsExpired reports whether the token lifetime has elapsed at now.
// A token without ExpiresIn is never expired.
func (t *Token) IsExpired(now time.Time) bool {
	if t.ExpiresIn == nil {
		return false
	}
	return t.IssuedAt+*t.ExpiresIn <= now.Unix()
}

// ExpiresAt returns the absolute expiry time, or false when the token does not expire.
func (t *Token) ExpiresAt() (time.Time, bool) {
	if t.ExpiresIn == nil {
		return time.Time{}, false
	}
	return time.Unix(t.IssuedAt+*t.ExpiresIn, 0), true
}

// AuthorizationValue returns the value for the Authorization header,
// "<token type> <access token>".
func (t *Token) AuthorizationValue() string {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = DefaultTokenType
	}
	return tokenType + " " + t.AccessToken
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	if t.ExpiresIn != nil {
		v := *t.ExpiresIn
		c.ExpiresIn = &v
	}
	return &c
}

// PendingAuthorizationRequest is the state recorded when a login starts and
// consumed once when the redirect returns.
type PendingAuthorizationRequest struct {
	ClientID            string   `json:"client_id"`
	RedirectURI         string   `json:"redirect_uri"`
	Scopes              []string `json:"scopes,omitempty"`
	ResponseType        string   `json:"response_type"`
	State               string   `json:"state"`
	CodeVerifier        string   `json:"code_verifier"`
	CodeChallenge       string   `json:"code_challenge"`
	CodeChallengeMethod string   `json:"code_challenge_method"`
}

// NewPendingAuthorizationRequest creates a request for cfg with a fresh PKCE
// pair and state.
func NewPendingAuthorizationRequest(cfg ClientConfig) (*PendingAuthorizationRequest, error) {
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}
	pkce := GeneratePKCE()

	return &PendingAuthorizationRequest{
		ClientID:            cfg.ClientID,
		RedirectURI:         cfg.RedirectURI,
		Scopes:              append([]string(nil), cfg.Scopes...),
		ResponseType:        ResponseTypeCode,
		State:               state,
		CodeVerifier:        pkce.CodeVerifier,
		CodeChallenge:       pkce.CodeChallenge,
		CodeChallengeMethod: pkce.CodeChallengeMethod,
	}, nil
}

// Validate checks the fields needed to start the request.
func (r *PendingAuthorizationRequest) Validate() error {
	switch {
	case r.ClientID == "":
		return fmt.Errorf("%w: client_id is required", ErrInvalidConfiguration)
	case r.RedirectURI == "":
		return fmt.Errorf("%w: redirect_uri is required", ErrInvalidConfiguration)
	case r.State == "":
		return fmt.Errorf("%w: state is required", ErrInvalidConfiguration)
	case r.CodeChallenge == "":
		return fmt.Errorf("%w: code_challenge is required", ErrInvalidConfiguration)
	}
	return nil
}

// AuthorizationResponse holds the parameters returned on the redirect URI.
// Either Code or Error is set.
type AuthorizationResponse struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	ErrorURI         string
}

// IsError reports whether the server returned an error response.
func (r *AuthorizationResponse) IsError() bool {
	return r.Error != ""
}

// AsError converts an error response into an *AuthorizationError.
func (r *AuthorizationResponse) AsError() *AuthorizationError {
	return &AuthorizationError{
		Code:        r.Error,
		Description: r.ErrorDescription,
		URI:         r.ErrorURI,
	}
}

// ResponseFromParams builds an AuthorizationResponse from parsed redirect
// parameters. It reports false when neither code nor error is present.
func ResponseFromParams(params map[string]string) (*AuthorizationResponse, bool) {
	if params[ParamCode] == "" && params[ParamError] == "" {
		return nil, false
	}
	return &AuthorizationResponse{
		Code:             params[ParamCode],
		State:            params[ParamState],
		Error:            params[ParamError],
		ErrorDescription: params[ParamErrorDescription],
		ErrorURI:         params[ParamErrorURI],
	}, true
}

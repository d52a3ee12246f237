package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth-session/pkg/logging"
	"github.com/giantswarm/oauth-session/pkg/oauth"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 * 1024

// Exchanger talks to the token and revocation endpoints. It performs no
// retries; failures surface to the caller immediately.
type Exchanger struct {
	httpClient *http.Client
	now        func() time.Time
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithHTTPClient sets the client used for endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Exchanger) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithClock sets the clock used to stamp IssuedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Exchanger) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Exchanger.
func New(opts ...Option) *Exchanger {
	e := &Exchanger{
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange redeems an authorization code for a token using the PKCE verifier.
func (e *Exchanger) Exchange(ctx context.Context, cfg oauth.ClientConfig, code, codeVerifier string) (*oauth.Token, error) {
	conf := cfg.OAuth2Config()
	logging.Debug("Exchange", "Exchanging authorization code %s at %s", logging.TruncateSecret(code), cfg.TokenEndpoint)

	tok, err := conf.Exchange(e.withClient(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		endpointErr := newEndpointError(opExchange, oauth.ErrTokenExchangeFailed, err)
		logging.Error("Exchange", endpointErr, "Authorization code exchange failed")
		logging.Audit(logging.AuditEvent{
			Action:   "token_issued",
			Outcome:  "failure",
			ClientID: cfg.ClientID,
			Target:   cfg.TokenEndpoint,
			Error:    endpointErr.summary(),
		})
		return nil, endpointErr
	}

	token := e.fromOAuth2(tok)
	logging.Audit(logging.AuditEvent{
		Action:   "token_issued",
		Outcome:  "success",
		ClientID: cfg.ClientID,
		Target:   cfg.TokenEndpoint,
	})
	return token, nil
}

// Refresh obtains a new token with the refresh token of token. No scope is
// sent, so the server keeps the original grant. If the server does not
// rotate the refresh token, the previous one is kept.
func (e *Exchanger) Refresh(ctx context.Context, cfg oauth.ClientConfig, token *oauth.Token) (*oauth.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token available", oauth.ErrRefreshFailed)
	}

	conf := cfg.OAuth2Config()
	conf.Scopes = nil
	logging.Debug("Exchange", "Refreshing with refresh token %s at %s", logging.TruncateSecret(token.RefreshToken), cfg.TokenEndpoint)

	src := conf.TokenSource(e.withClient(ctx), &oauth2.Token{RefreshToken: token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		endpointErr := newEndpointError(opRefresh, oauth.ErrRefreshFailed, err)
		logging.Error("Exchange", endpointErr, "Token refresh failed")
		logging.Audit(logging.AuditEvent{
			Action:   "token_refreshed",
			Outcome:  "failure",
			ClientID: cfg.ClientID,
			Target:   cfg.TokenEndpoint,
			Error:    endpointErr.summary(),
		})
		return nil, endpointErr
	}

	refreshed := e.fromOAuth2(tok)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	logging.Audit(logging.AuditEvent{
		Action:   "token_refreshed",
		Outcome:  "success",
		ClientID: cfg.ClientID,
		Target:   cfg.TokenEndpoint,
	})
	return refreshed, nil
}

// Revoke asks the revocation endpoint to invalidate the access token (RFC 7009).
func (e *Exchanger) Revoke(ctx context.Context, cfg oauth.ClientConfig, token *oauth.Token) error {
	err := e.revoke(ctx, cfg, token)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		logging.Error("Exchange", err, "Token revocation failed")
	}
	audit := logging.AuditEvent{
		Action:   "token_revoked",
		Outcome:  outcome,
		ClientID: cfg.ClientID,
		Target:   cfg.RevocationEndpoint,
	}
	var endpointErr *EndpointError
	if errors.As(err, &endpointErr) {
		audit.Error = endpointErr.summary()
	} else if err != nil {
		audit.Error = err.Error()
	}
	logging.Audit(audit)
	return err
}

func (e *Exchanger) revoke(ctx context.Context, cfg oauth.ClientConfig, token *oauth.Token) error {
	if cfg.RevocationEndpoint == "" {
		return fmt.Errorf("%w: no revocation endpoint configured", oauth.ErrRevokeFailed)
	}
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: no access token", oauth.ErrRevokeFailed)
	}

	form := url.Values{
		"token":           {token.AccessToken},
		"token_type_hint": {"access_token"},
		"client_id":       {cfg.ClientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.RevocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", oauth.ErrRevokeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return newEndpointError(opRevoke, oauth.ErrRevokeFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		endpointErr := &EndpointError{
			Op:         opRevoke,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
			kind:       oauth.ErrRevokeFailed,
		}
		var payload struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &payload) == nil {
			endpointErr.Code = payload.Error
			endpointErr.Description = payload.ErrorDescription
		}
		return endpointErr
	}
	return nil
}

func (e *Exchanger) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// fromOAuth2 converts a token endpoint response, stamping IssuedAt with the
// exchanger's clock.
func (e *Exchanger) fromOAuth2(tok *oauth2.Token) *oauth.Token {
	now := e.now()
	token := &oauth.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		IssuedAt:     now.Unix(),
		ExpiresIn:    expiresIn(tok, now),
	}
	if token.TokenType == "" {
		token.TokenType = oauth.DefaultTokenType
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		token.Scope = scope
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		token.IDToken = idToken
	}
	return token
}

// expiresIn reads the wire expires_in value. Servers that omit it yield nil.
func expiresIn(tok *oauth2.Token, now time.Time) *int64 {
	var seconds int64
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		seconds = int64(v)
	case int64:
		seconds = v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil
		}
		seconds = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil
		}
		seconds = n
	default:
		switch {
		case tok.ExpiresIn > 0:
			seconds = tok.ExpiresIn
		case !tok.Expiry.IsZero():
			seconds = int64(math.Round(tok.Expiry.Sub(now).Seconds()))
		default:
			return nil
		}
	}
	return &seconds
}

package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/giantswarm/oauth-session/internal/page"
	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/logging"
	"github.com/giantswarm/oauth-session/pkg/oauth"
)

const (
	// FlowMarker is contained in every storage key written for an
	// in-flight authorization. The sweep removes any key containing it.
	FlowMarker = "oauth_authorization"

	// CurrentKey holds the handle of the in-flight authorization request.
	CurrentKey = FlowMarker + "_current"

	requestKeyPrefix = FlowMarker + "_request_"
)

// RequestKey returns the storage key of the request stored under handle.
func RequestKey(handle string) string {
	return requestKeyPrefix + handle
}

// Phase is the coordinator's persisted state.
type Phase int

const (
	// PhaseIdle means no authorization request is stored.
	PhaseIdle Phase = iota
	// PhasePendingRedirect means a request was started and awaits the redirect.
	PhasePendingRedirect
)

// String makes Phase satisfy the fmt.Stringer interface.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhasePendingRedirect:
		return "PendingRedirect"
	default:
		return "Unknown"
	}
}

// Authorization is a verified authorization response paired with the
// request that produced it.
type Authorization struct {
	Request  *oauth.PendingAuthorizationRequest
	Response *oauth.AuthorizationResponse
}

// Coordinator owns the lifecycle of a pending authorization request across
// the redirect round trip. No in-memory state survives between Start and
// Resolve; everything goes through the page's storage.
type Coordinator struct {
	host      page.Context
	store     storage.FlowStorage
	parse     oauth.ParamsParser
	purger    Purger
	newHandle func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithParamsParser replaces the redirect parameter decoder.
func WithParamsParser(p oauth.ParamsParser) Option {
	return func(c *Coordinator) {
		c.parse = p
	}
}

// WithPurger replaces the storage sweep.
func WithPurger(p Purger) Option {
	return func(c *Coordinator) {
		c.purger = p
	}
}

// WithHandleGenerator replaces the generator of request handles.
func WithHandleGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		c.newHandle = fn
	}
}

// New creates a coordinator for host.
func New(host page.Context, opts ...Option) *Coordinator {
	c := &Coordinator{
		host:      host,
		store:     host.Storage(),
		parse:     oauth.ParseResponseParams,
		newHandle: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.purger == nil {
		c.purger = NewPrefixPurger(c.store, FlowMarker)
	}
	return c
}

// AuthorizationURL builds the authorization endpoint URL for req. Any query
// already present on the endpoint is preserved.
func AuthorizationURL(cfg oauth.ClientConfig, req *oauth.PendingAuthorizationRequest) (string, error) {
	u, err := url.Parse(cfg.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid authorization endpoint: %v", oauth.ErrInvalidConfiguration, err)
	}

	method := req.CodeChallengeMethod
	if method == "" {
		method = oauth.PKCEMethodS256
	}
	responseType := req.ResponseType
	if responseType == "" {
		responseType = oauth.ResponseTypeCode
	}

	q := u.Query()
	q.Set("client_id", req.ClientID)
	q.Set("redirect_uri", req.RedirectURI)
	q.Set("scope", cfg.ScopeString())
	q.Set("state", req.State)
	q.Set("response_type", responseType)
	q.Set("code_challenge", req.CodeChallenge)
	q.Set("code_challenge_method", method)
	q.Set("response_mode", "query")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start persists req and navigates the host to the authorization endpoint.
// A previously pending request is orphaned and collected by the next sweep.
func (c *Coordinator) Start(ctx context.Context, cfg oauth.ClientConfig, req *oauth.PendingAuthorizationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	target, err := AuthorizationURL(cfg, req)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode authorization request: %w", err)
	}

	handle := c.newHandle()
	if err := c.store.Set(ctx, RequestKey(handle), string(raw)); err != nil {
		return fmt.Errorf("failed to store authorization request: %w", err)
	}
	if err := c.store.Set(ctx, CurrentKey, handle); err != nil {
		return fmt.Errorf("failed to store authorization request: %w", err)
	}

	logging.Info("Coordinator", "Starting authorization request for client %s", req.ClientID)
	logging.Audit(logging.AuditEvent{
		Action:   "authorization_started",
		Outcome:  "success",
		ClientID: req.ClientID,
		Target:   cfg.AuthorizationEndpoint,
	})

	return c.host.Navigate(ctx, target)
}

// Phase reports whether an authorization request is pending.
func (c *Coordinator) Phase(ctx context.Context) (Phase, error) {
	_, ok, err := c.store.Get(ctx, CurrentKey)
	if err != nil {
		return PhaseIdle, err
	}
	if ok {
		return PhasePendingRedirect, nil
	}
	return PhaseIdle, nil
}

// Resolve completes a pending authorization from the host's current URL.
//
// It returns oauth.ErrNoFlow when the URL carries no authorization response,
// an error wrapping oauth.ErrAuthorizationIncomplete when the response does
// not match a stored request, and an *oauth.AuthorizationError when the
// server reported an error. Flow storage is cleaned on every path.
func (c *Coordinator) Resolve(ctx context.Context) (*Authorization, error) {
	var handle string
	defer func() {
		c.cleanup(ctx, handle)
	}()

	// Generic redirect handlers ask for the fragment; the parser ignores it.
	params := c.parse(c.host.CurrentURL(), true)
	resp, ok := oauth.ResponseFromParams(params)
	if !ok {
		return nil, oauth.ErrNoFlow
	}

	handle, found, err := c.store.Get(ctx, CurrentKey)
	if err != nil {
		return nil, fmt.Errorf("%w: reading pending request: %w", oauth.ErrAuthorizationIncomplete, err)
	}
	if !found || handle == "" {
		return nil, fmt.Errorf("%w: no pending request", oauth.ErrAuthorizationIncomplete)
	}

	raw, found, err := c.store.Get(ctx, RequestKey(handle))
	if err != nil {
		return nil, fmt.Errorf("%w: reading pending request: %w", oauth.ErrAuthorizationIncomplete, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: pending request %s is missing", oauth.ErrAuthorizationIncomplete, handle)
	}

	var req oauth.PendingAuthorizationRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		logging.Warn("Coordinator", "Stored authorization request could not be decoded: %v", err)
		return nil, fmt.Errorf("%w: stored request is corrupt", oauth.ErrAuthorizationIncomplete)
	}

	if resp.State != req.State {
		logging.Warn("Coordinator", "Authorization response state does not match the pending request")
		logging.Audit(logging.AuditEvent{
			Action:   "authorization_state_mismatch",
			Outcome:  "denied",
			ClientID: req.ClientID,
		})
		return nil, fmt.Errorf("%w: state mismatch", oauth.ErrAuthorizationIncomplete)
	}

	if resp.IsError() {
		authErr := resp.AsError()
		logging.Error("Coordinator", authErr, "Authorization server rejected the request")
		logging.Audit(logging.AuditEvent{
			Action:   "authorization_denied",
			Outcome:  "failure",
			ClientID: req.ClientID,
			Error:    authErr.Code,
		})
		return nil, authErr
	}

	logging.Debug("Coordinator", "Authorization response matched pending request, state %s", logging.TruncateSecret(resp.State))
	return &Authorization{Request: &req, Response: resp}, nil
}

// cleanup removes the flow key and request entry, then sweeps. Errors are
// logged and never replace the outcome of Resolve.
func (c *Coordinator) cleanup(ctx context.Context, handle string) {
	// Cleanup must run even when the caller's context is already cancelled.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if err := c.store.Remove(ctx, CurrentKey); err != nil {
		errs = append(errs, err)
	}
	if handle != "" {
		if err := c.store.Remove(ctx, RequestKey(handle)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.purger.PurgeFlowArtifacts(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		logging.Warn("Coordinator", "Failed to clean up authorization storage: %v", err)
	}
}

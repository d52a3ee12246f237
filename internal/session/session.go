package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/oauth-session/internal/coordinator"
	"github.com/giantswarm/oauth-session/internal/exchange"
	"github.com/giantswarm/oauth-session/internal/page"
	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/logging"
	"github.com/giantswarm/oauth-session/pkg/oauth"
)

// TokenKeyPrefix prefixes the storage key of a client's persisted token.
const TokenKeyPrefix = "oauth-token-"

// TokenKey returns the storage key of the token persisted for clientID.
func TokenKey(clientID string) string {
	return TokenKeyPrefix + clientID
}

// TokenExchanger performs the token endpoint calls of a session.
type TokenExchanger interface {
	Exchange(ctx context.Context, cfg oauth.ClientConfig, code, codeVerifier string) (*oauth.Token, error)
	Refresh(ctx context.Context, cfg oauth.ClientConfig, token *oauth.Token) (*oauth.Token, error)
	Revoke(ctx context.Context, cfg oauth.ClientConfig, token *oauth.Token) error
}

// AuthorizationCoordinator starts and resolves authorization requests.
type AuthorizationCoordinator interface {
	Start(ctx context.Context, cfg oauth.ClientConfig, req *oauth.PendingAuthorizationRequest) error
	Resolve(ctx context.Context) (*coordinator.Authorization, error)
}

// Session holds the current token of one OAuth client on one host page and
// manages its lifecycle: login, restore, refresh, logout.
type Session struct {
	cfg         oauth.ClientConfig
	host        page.Context
	store       storage.FlowStorage
	exchanger   TokenExchanger
	coordinator AuthorizationCoordinator
	now         func() time.Time
	onError     func(error)
	httpClient  *http.Client

	mu    sync.RWMutex
	token *oauth.Token

	restoreGroup singleflight.Group
}

// New creates a session for cfg on host. It fails with oauth.ErrInsecureContext
// when host is not a secure context. An empty redirect URI in cfg is replaced
// by the origin and path of the host's current URL.
func New(cfg oauth.ClientConfig, host page.Context, opts ...Option) (*Session, error) {
	if host == nil {
		return nil, fmt.Errorf("%w: host page is required", oauth.ErrInvalidConfiguration)
	}
	if !host.IsSecureContext() {
		logging.Warn("Session", "Refusing to operate outside a secure context")
		return nil, fmt.Errorf("%w: OAuth client cannot operate within insecure contexts", oauth.ErrInsecureContext)
	}

	if cfg.RedirectURI == "" {
		cfg = cfg.WithRedirectURI(page.DefaultRedirectURI(host.CurrentURL()))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:        cfg,
		host:       host,
		store:      host.Storage(),
		now:        time.Now,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.onError == nil {
		s.onError = func(err error) {
			logging.Error("Session", err, "OAuth session error")
		}
	}
	if s.exchanger == nil {
		s.exchanger = exchange.New(exchange.WithHTTPClient(s.httpClient), exchange.WithClock(s.now))
	}
	if s.coordinator == nil {
		s.coordinator = coordinator.New(host)
	}
	return s, nil
}

// Config returns the effective client configuration.
func (s *Session) Config() oauth.ClientConfig {
	return s.cfg
}

// RedirectToLogin starts a new authorization request and navigates the host
// away. The outcome is picked up by RestoreLogin once the host returns.
func (s *Session) RedirectToLogin(ctx context.Context) error {
	req, err := oauth.NewPendingAuthorizationRequest(s.cfg)
	if err != nil {
		return err
	}
	return s.coordinator.Start(ctx, s.cfg, req)
}

// RestoreLogin establishes the session state for this page load:
//
//  1. a completed redirect flow is exchanged for a token;
//  2. authorization response parameters are removed from the URL;
//  3. otherwise the persisted token is loaded;
//  4. an expired token is refreshed, and dropped if refreshing fails;
//  5. the result is persisted, or the persisted entry removed.
//
// Protocol failures go to the error handler and end in a logged-out session.
// Only a failure to persist the result is returned. Concurrent calls share
// one execution.
func (s *Session) RestoreLogin(ctx context.Context) error {
	_, err, _ := s.restoreGroup.Do("restore", func() (interface{}, error) {
		return nil, s.restore(ctx)
	})
	return err
}

func (s *Session) restore(ctx context.Context) error {
	token := s.completeRedirect(ctx)

	s.removeURLParameters()

	if token == nil {
		cached, err := s.loadToken(ctx)
		if err != nil {
			s.onError(err)
		}
		token = cached
	}

	if token != nil && token.IsExpired(s.now()) {
		logging.Info("Session", "Cached token for client %s expired, refreshing", s.cfg.ClientID)
		refreshed, err := s.exchanger.Refresh(ctx, s.cfg, token)
		if err != nil {
			s.onError(err)
			token = nil
		} else {
			token = refreshed
		}
	}

	s.setToken(token)
	return s.storeToken(ctx, token)
}

// completeRedirect resolves a returning authorization flow. A redirect flow
// always wins over a cached token.
func (s *Session) completeRedirect(ctx context.Context) *oauth.Token {
	auth, err := s.coordinator.Resolve(ctx)
	if err != nil {
		if !errors.Is(err, oauth.ErrNoFlow) {
			s.onError(err)
		}
		return nil
	}

	cfg := s.cfg
	if auth.Request != nil && auth.Request.RedirectURI != "" {
		cfg = cfg.WithRedirectURI(auth.Request.RedirectURI)
	}

	token, err := s.exchanger.Exchange(ctx, cfg, auth.Response.Code, auth.Request.CodeVerifier)
	if err != nil {
		s.onError(err)
		return nil
	}
	logging.Info("Session", "Login completed for client %s", s.cfg.ClientID)
	return token
}

func (s *Session) removeURLParameters() {
	current := s.host.CurrentURL()
	if !oauth.HasResponseParams(current) {
		return
	}
	s.host.ReplaceURL(oauth.StripResponseParams(current))
}

// Logout revokes the held token on a best-effort basis and then clears the
// session. The local session is cleared whatever the revocation outcome;
// only a storage failure is returned.
func (s *Session) Logout(ctx context.Context) error {
	token := s.Token()
	if token != nil {
		if err := s.exchanger.Revoke(ctx, s.cfg, token); err != nil {
			s.onError(err)
		}
	}

	s.setToken(nil)
	if err := s.storeToken(ctx, nil); err != nil {
		return err
	}

	logging.Info("Session", "Logged out client %s", s.cfg.ClientID)
	logging.Audit(logging.AuditEvent{
		Action:   "logout",
		Outcome:  "success",
		ClientID: s.cfg.ClientID,
	})
	return nil
}

// IsLoggedIn reports whether a token is held.
func (s *Session) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil
}

// Token returns a copy of the held token, or nil.
func (s *Session) Token() *oauth.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.Clone()
}

// AuthHeader returns the Authorization header for the held token, or an
// empty map when logged out.
func (s *Session) AuthHeader() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	headers := make(map[string]string)
	if s.token != nil {
		headers["Authorization"] = s.token.AuthorizationValue()
	}
	return headers
}

func (s *Session) setToken(token *oauth.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token.Clone()
}

func (s *Session) tokenKey() string {
	return TokenKey(s.cfg.ClientID)
}

// loadToken reads the persisted token. A corrupt entry is reported and
// treated as absent.
func (s *Session) loadToken(ctx context.Context) (*oauth.Token, error) {
	raw, ok, err := s.store.Get(ctx, s.tokenKey())
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var token oauth.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("stored token has no access token")
	}
	return &token, nil
}

// storeToken persists token, or removes the entry when token is nil.
func (s *Session) storeToken(ctx context.Context, token *oauth.Token) error {
	if token == nil {
		if err := s.store.Remove(ctx, s.tokenKey()); err != nil {
			return fmt.Errorf("failed to remove stored token: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.store.Set(ctx, s.tokenKey(), string(raw)); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

package session

import (
	"net/http"
	"time"
)

// Option configures a Session.
type Option func(*Session)

// WithExchanger replaces the token endpoint client.
func WithExchanger(e TokenExchanger) Option {
	return func(s *Session) {
		s.exchanger = e
	}
}

// WithCoordinator replaces the authorization coordinator.
func WithCoordinator(c AuthorizationCoordinator) Option {
	return func(s *Session) {
		s.coordinator = c
	}
}

// WithClock sets the clock used for expiry checks and token issuance times.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithErrorHandler sets the channel for non-fatal errors such as a failed
// refresh or revocation. The default logs them.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

// WithHTTPClient sets the client used for endpoint calls and as the base of Client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		if c != nil {
			s.httpClient = c
		}
	}
}

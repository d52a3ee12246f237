package page

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/logging"
)

// Headless is an in-process page. Navigations are recorded instead of
// performed, and the location is set by the caller.
type Headless struct {
	mu          sync.RWMutex
	current     *url.URL
	secure      bool
	store       storage.FlowStorage
	navigations []string
}

// NewHeadless creates a page located at rawURL. The page is a secure context
// when rawURL is https or a loopback address.
func NewHeadless(rawURL string, store storage.FlowStorage) (*Headless, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", rawURL, err)
	}
	if store == nil {
		store = storage.NewMemory()
	}
	return &Headless{
		current: u,
		secure:  IsPotentiallyTrustworthy(u),
		store:   store,
	}, nil
}

// IsSecureContext implements Context.
func (h *Headless) IsSecureContext() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.secure
}

// SetSecure overrides the secure context flag.
func (h *Headless) SetSecure(secure bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.secure = secure
}

// CurrentURL implements Context.
func (h *Headless) CurrentURL() *url.URL {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneURL(h.current)
}

// ReplaceURL implements Context.
func (h *Headless) ReplaceURL(u *url.URL) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = cloneURL(u)
}

// SetURL moves the page to rawURL, as a browser returning from a redirect would.
func (h *Headless) SetURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid page URL %q: %w", rawURL, err)
	}
	h.ReplaceURL(u)
	return nil
}

// Navigate implements Context by recording target.
func (h *Headless) Navigate(_ context.Context, target string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.navigations = append(h.navigations, target)
	logging.Debug("Page", "Recorded navigation away from %s", DefaultRedirectURI(h.current))
	return nil
}

// Navigations returns every recorded navigation target in order.
func (h *Headless) Navigations() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.navigations...)
}

// LastNavigation returns the most recent navigation target, or "".
func (h *Headless) LastNavigation() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.navigations) == 0 {
		return ""
	}
	return h.navigations[len(h.navigations)-1]
}

// Storage implements Context.
func (h *Headless) Storage() storage.FlowStorage {
	return h.store
}

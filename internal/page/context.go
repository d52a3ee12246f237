package page

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/giantswarm/oauth-session/internal/storage"
)

// Context is the host page a session runs in: its location, its ability to
// navigate away, and its durable storage.
type Context interface {
	// IsSecureContext reports whether the page may handle credentials.
	IsSecureContext() bool

	// CurrentURL returns a copy of the page location.
	CurrentURL() *url.URL

	// ReplaceURL changes the visible location without reloading.
	ReplaceURL(u *url.URL)

	// Navigate leaves the page for target.
	Navigate(ctx context.Context, target string) error

	// Storage returns the storage scoped to this page's origin.
	Storage() storage.FlowStorage
}

// IsLoopbackHost reports whether host names the local machine.
func IsLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

// IsPotentiallyTrustworthy reports whether u is served over TLS or from the
// loopback interface.
func IsPotentiallyTrustworthy(u *url.URL) bool {
	if u == nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		return true
	case "http", "ws":
		return IsLoopbackHost(u.Hostname())
	}
	return false
}

// DefaultRedirectURI returns the origin and path of u, the redirect URI a
// page uses when none is configured.
func DefaultRedirectURI(u *url.URL) string {
	if u == nil {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}

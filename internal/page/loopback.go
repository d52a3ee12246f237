package page

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/pkg/browser"

	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/logging"
)

// LoopbackOptions configures a Loopback page.
type LoopbackOptions struct {
	// OpenBrowser opens the system browser on Navigate. When false, or when
	// the browser cannot be opened, the URL is printed to Out.
	OpenBrowser bool

	// Out receives user-facing instructions. Defaults to os.Stderr.
	Out io.Writer

	// In is read for a pasted redirect URL when the redirect URI is not a
	// loopback address. Defaults to os.Stdin.
	In io.Reader

	// Opener replaces the system browser launcher.
	Opener func(url string) error
}

// Loopback is the desktop page host. The page lives at the redirect URI:
// for loopback redirect URIs a local callback server receives the redirect,
// otherwise the user pastes the URL the browser landed on.
type Loopback struct {
	mu       sync.RWMutex
	current  *url.URL
	store    storage.FlowStorage
	opts     LoopbackOptions
	callback *CallbackServer
}

// NewLoopback creates a page located at redirectURI.
func NewLoopback(redirectURI string, store storage.FlowStorage, opts LoopbackOptions) (*Loopback, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("redirect URI must be absolute: %s", redirectURI)
	}
	u.Fragment = ""
	u.RawFragment = ""

	if store == nil {
		store = storage.NewMemory()
	}
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Opener == nil {
		opts.Opener = browser.OpenURL
	}

	return &Loopback{current: u, store: store, opts: opts}, nil
}

// Start binds the callback server for loopback redirect URIs. A zero port
// is replaced by the bound port in CurrentURL. Start is a no-op for other
// redirect URIs and when already started.
func (l *Loopback) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.callback != nil || !l.receivesLocally() {
		return nil
	}

	srv, err := NewCallbackServer(l.current)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	l.callback = srv

	bound, err := url.Parse(srv.RedirectURI())
	if err != nil {
		return err
	}
	bound.RawQuery = l.current.RawQuery
	l.current = bound
	return nil
}

// receivesLocally reports whether the redirect can be served on this machine.
// Caller must hold l.mu.
func (l *Loopback) receivesLocally() bool {
	return l.current.Scheme == "http" && IsLoopbackHost(l.current.Hostname())
}

// IsSecureContext implements Context.
func (l *Loopback) IsSecureContext() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return IsPotentiallyTrustworthy(l.current)
}

// CurrentURL implements Context.
func (l *Loopback) CurrentURL() *url.URL {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneURL(l.current)
}

// ReplaceURL implements Context.
func (l *Loopback) ReplaceURL(u *url.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = cloneURL(u)
}

// Storage implements Context.
func (l *Loopback) Storage() storage.FlowStorage {
	return l.store
}

// Navigate implements Context. It makes sure the callback server is
// listening, then sends the user to target.
func (l *Loopback) Navigate(ctx context.Context, target string) error {
	if err := l.Start(ctx); err != nil {
		return err
	}

	if l.opts.OpenBrowser {
		logging.Debug("Page", "Opening browser for authorization")
		err := l.opts.Opener(target)
		if err == nil {
			_, _ = fmt.Fprintf(l.opts.Out, "Opened your browser to log in. If it did not open, visit:\n\n  %s\n\n", target)
			return nil
		}
		logging.Warn("Page", "Failed to open browser: %v", err)
	}

	_, _ = fmt.Fprintf(l.opts.Out, "Open this URL in your browser to log in:\n\n  %s\n\n", target)
	return nil
}

// WaitForRedirect blocks until the authorization server redirects back and
// moves the page to the received URL.
func (l *Loopback) WaitForRedirect(ctx context.Context) (*url.URL, error) {
	l.mu.RLock()
	srv := l.callback
	local := l.receivesLocally()
	l.mu.RUnlock()

	var (
		received *url.URL
		err      error
	)
	switch {
	case srv != nil:
		received, err = srv.WaitForCallback(ctx)
	case local:
		return nil, errors.New("callback server not started")
	default:
		received, err = l.readPastedURL(ctx)
	}
	if err != nil {
		return nil, err
	}

	l.ReplaceURL(received)
	return cloneURL(received), nil
}

func (l *Loopback) readPastedURL(ctx context.Context) (*url.URL, error) {
	_, _ = fmt.Fprint(l.opts.Out, "After logging in, paste the URL your browser was redirected to: ")

	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		text, err := bufio.NewReader(l.opts.In).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && text != "") {
			ch <- line{err: err}
			return
		}
		ch <- line{text: strings.TrimSpace(text)}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("failed to read redirect URL: %w", res.err)
		}
		u, err := url.Parse(res.text)
		if err != nil {
			return nil, fmt.Errorf("invalid redirect URL: %w", err)
		}
		return u, nil
	}
}

// Close stops the callback server if running.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.callback != nil {
		l.callback.Stop()
		l.callback = nil
	}
	return nil
}

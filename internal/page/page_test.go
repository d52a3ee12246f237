package page

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/oauth-session/internal/storage"
)

func TestIsPotentiallyTrustworthy(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://app.example/", true},
		{"http://localhost:3000/cb", true},
		{"http://app.localhost/", true},
		{"http://127.0.0.1:8080/", true},
		{"http://[::1]:8080/", true},
		{"http://app.example/", false},
		{"file:///tmp/x", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, IsPotentiallyTrustworthy(u))
		})
	}
	assert.False(t, IsPotentiallyTrustworthy(nil))
}

func TestDefaultRedirectURI(t *testing.T) {
	u, err := url.Parse("https://app.example/page/?code=x&tab=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/page/", DefaultRedirectURI(u))
	assert.Empty(t, DefaultRedirectURI(nil))
}

func TestHeadless(t *testing.T) {
	store := storage.NewMemory()
	h, err := NewHeadless("https://app.example/home", store)
	require.NoError(t, err)

	assert.True(t, h.IsSecureContext())
	assert.Same(t, store, h.Storage())

	current := h.CurrentURL()
	current.Path = "/mutated"
	assert.Equal(t, "/home", h.CurrentURL().Path, "CurrentURL must return a copy")

	require.NoError(t, h.Navigate(context.Background(), "https://auth.example/authorize/?a=1"))
	require.NoError(t, h.Navigate(context.Background(), "https://auth.example/authorize/?a=2"))
	assert.Equal(t, "https://auth.example/authorize/?a=2", h.LastNavigation())
	assert.Len(t, h.Navigations(), 2)

	require.NoError(t, h.SetURL("https://app.example/home?code=ABC"))
	assert.Equal(t, "code=ABC", h.CurrentURL().RawQuery)

	h.SetSecure(false)
	assert.False(t, h.IsSecureContext())
}

func TestHeadless_InsecureOrigin(t *testing.T) {
	h, err := NewHeadless("http://app.example/", nil)
	require.NoError(t, err)
	assert.False(t, h.IsSecureContext())
	assert.NotNil(t, h.Storage())
	assert.Empty(t, h.LastNavigation())
}

func TestCallbackServer_RejectsNonLoopback(t *testing.T) {
	u, _ := url.Parse("http://app.example:3000/callback")
	_, err := NewCallbackServer(u)
	assert.Error(t, err)

	u, _ = url.Parse("https://localhost:3000/callback")
	_, err = NewCallbackServer(u)
	assert.Error(t, err)
}

func TestCallbackServer_ReceivesRedirect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u, _ := url.Parse("http://127.0.0.1:0/callback")
	srv, err := NewCallbackServer(u)
	require.NoError(t, err)
	require.NoError(t, srv.Start(ctx))
	defer srv.Stop()

	require.NotZero(t, srv.Port())

	resp, err := http.Get(srv.RedirectURI() + "?code=ABC&state=S1")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Login complete")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	received, err := srv.WaitForCallback(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", received.Query().Get("code"))
	assert.Equal(t, "/callback", received.Path)
}

func TestCallbackServer_ErrorPageAndSingleUse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u, _ := url.Parse("http://127.0.0.1:0/cb")
	srv, err := NewCallbackServer(u)
	require.NoError(t, err)
	require.NoError(t, srv.Start(ctx))
	defer srv.Stop()

	resp, err := http.Get(srv.RedirectURI() + "?error=access_denied&error_description=%3Cb%3Eno%3C%2Fb%3E")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Contains(t, string(body), "access_denied")
	assert.NotContains(t, string(body), "<b>no</b>", "description must be escaped")

	resp, err = http.Get(srv.RedirectURI() + "?code=again")
	if err == nil {
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestCallbackServer_StopWithoutCancel(t *testing.T) {
	u, _ := url.Parse("http://127.0.0.1:0/callback")
	srv, err := NewCallbackServer(u)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(srv.Port()))
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_ = conn.Close()

	srv.Stop()
	srv.Stop()

	select {
	case <-srv.done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not release the context watcher")
	}

	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err, "listener closed after Stop")
}

func TestLoopback_Secure(t *testing.T) {
	l, err := NewLoopback("http://localhost:3000/callback#frag", nil, LoopbackOptions{})
	require.NoError(t, err)
	assert.True(t, l.IsSecureContext())
	assert.Empty(t, l.CurrentURL().Fragment)

	l, err = NewLoopback("http://app.example/callback", nil, LoopbackOptions{})
	require.NoError(t, err)
	assert.False(t, l.IsSecureContext())

	_, err = NewLoopback("/relative", nil, LoopbackOptions{})
	assert.Error(t, err)
}

func TestLoopback_NavigateAndWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		out    bytes.Buffer
		opened string
	)
	l, err := NewLoopback("http://127.0.0.1:0/callback", storage.NewMemory(), LoopbackOptions{
		OpenBrowser: true,
		Out:         &out,
		Opener: func(target string) error {
			opened = target
			return nil
		},
	})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	require.NoError(t, l.Start(ctx))
	redirect := l.CurrentURL()
	require.NotEqual(t, "0", redirect.Port(), "bound port must replace zero")

	require.NoError(t, l.Navigate(ctx, "https://auth.example/authorize/?x=1"))
	assert.Equal(t, "https://auth.example/authorize/?x=1", opened)
	assert.Contains(t, out.String(), "https://auth.example/authorize/?x=1")

	go func() {
		resp, err := http.Get(redirect.String() + "?code=ABC&state=S1")
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	received, err := l.WaitForRedirect(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", received.Query().Get("code"))
	assert.Equal(t, "ABC", l.CurrentURL().Query().Get("code"))
}

func TestLoopback_BrowserFailureFallsBackToPrinting(t *testing.T) {
	var out bytes.Buffer
	l, err := NewLoopback("https://app.example/callback", nil, LoopbackOptions{
		OpenBrowser: true,
		Out:         &out,
		Opener:      func(string) error { return errors.New("no display") },
	})
	require.NoError(t, err)

	require.NoError(t, l.Navigate(context.Background(), "https://auth.example/authorize/"))
	assert.Contains(t, out.String(), "Open this URL in your browser")
}

func TestLoopback_PastedRedirect(t *testing.T) {
	var out bytes.Buffer
	l, err := NewLoopback("https://app.example/callback", nil, LoopbackOptions{
		Out: &out,
		In:  strings.NewReader("https://app.example/callback?code=XYZ&state=S\n"),
	})
	require.NoError(t, err)

	received, err := l.WaitForRedirect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "XYZ", received.Query().Get("code"))
	assert.Equal(t, "XYZ", l.CurrentURL().Query().Get("code"))
	assert.Contains(t, out.String(), "paste the URL")
}

func TestLoopback_WaitWithoutStart(t *testing.T) {
	l, err := NewLoopback("http://localhost:3000/callback", nil, LoopbackOptions{})
	require.NoError(t, err)

	_, err = l.WaitForRedirect(context.Background())
	assert.Error(t, err)
}

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testServer struct {
	srv         *httptest.Server
	deny        bool
	revokeCalls atomic.Int32

	mu        sync.Mutex
	redirects []string
}

// tokenRedirects returns the redirect_uri values sent to the token endpoint.
func (ts *testServer) tokenRedirects() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.redirects...)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/authorize/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		target, err := url.Parse(q.Get("redirect_uri"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		params := url.Values{"state": {q.Get("state")}}
		if ts.deny {
			params.Set("error", "access_denied")
		} else {
			params.Set("code", "ABC")
		}
		target.RawQuery = params.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
	})
	mux.HandleFunc("/token/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		ts.mu.Lock()
		ts.redirects = append(ts.redirects, r.PostForm.Get("redirect_uri"))
		ts.mu.Unlock()

		redirect, err := url.Parse(r.PostForm.Get("redirect_uri"))
		if err != nil || redirect.Port() == "0" || r.PostForm.Get("code") != "ABC" || r.PostForm.Get("code_verifier") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","refresh_token":"rt-1","expires_in":3600,"scope":"read write"}`))
	})
	mux.HandleFunc("/revoke_token/", func(w http.ResponseWriter, r *http.Request) {
		ts.revokeCalls.Add(1)
	})
	mux.HandleFunc("/api/me/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"name":"jo"}`))
	})

	ts.srv = httptest.NewServer(mux)
	t.Cleanup(ts.srv.Close)
	return ts
}

func writeTestConfig(t *testing.T, ts *testServer) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`server: %s
clientId: cli
scopes: [read]
apiBaseUrl: %s/api
callback:
  port: 0
storage:
  type: file
  path: %s
`, ts.srv.URL, ts.srv.URL, filepath.Join(dir, "storage.json"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// fakeBrowser follows the authorization URL like a browser would.
func fakeBrowser(t *testing.T) {
	t.Helper()
	original := browserOpener
	browserOpener = func(target string) error {
		go func() {
			resp, err := http.Get(target)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
	t.Cleanup(func() { browserOpener = original })
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestLoginLifecycle(t *testing.T) {
	ts := newTestServer(t)
	cfgPath := writeTestConfig(t, ts)
	fakeBrowser(t)

	_, stderr, err := runCLI(t, "--config", cfgPath, "login", "--timeout", "10s")
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "Logged in to "+ts.srv.URL)

	out, _, err := runCLI(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")
	assert.Contains(t, out, "cli")
	assert.Contains(t, out, "Available")
	assert.Contains(t, out, "read, write")

	out, _, err = runCLI(t, "--config", cfgPath, "header")
	require.NoError(t, err)
	assert.Equal(t, "Authorization: Bearer at-1\n", out)

	out, _, err = runCLI(t, "--config", cfgPath, "header", "--value-only")
	require.NoError(t, err)
	assert.Equal(t, "Bearer at-1\n", out)

	out, _, err = runCLI(t, "--config", cfgPath, "fetch", "/me")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "jo"`)

	_, stderr, err = runCLI(t, "--config", cfgPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Logged out of")
	assert.Equal(t, int32(1), ts.revokeCalls.Load())

	_, _, err = runCLI(t, "--config", cfgPath, "header")
	require.Error(t, err)
	assert.Equal(t, ExitCodeNotLoggedIn, getExitCode(err))
}

func TestLogin_ZeroPortRedirectURI(t *testing.T) {
	ts := newTestServer(t)
	cfgPath := writeTestConfig(t, ts)
	fakeBrowser(t)

	_, stderr, err := runCLI(t, "--config", cfgPath, "--redirect-uri", "http://127.0.0.1:0/callback", "login", "--timeout", "10s")
	require.NoError(t, err, stderr)

	redirects := ts.tokenRedirects()
	require.Len(t, redirects, 1)
	sent, err := url.Parse(redirects[0])
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", sent.Hostname())
	assert.NotEqual(t, "0", sent.Port())
	assert.Equal(t, "/callback", sent.Path)
}

func TestLogin_Denied(t *testing.T) {
	ts := newTestServer(t)
	ts.deny = true
	cfgPath := writeTestConfig(t, ts)
	fakeBrowser(t)

	_, _, err := runCLI(t, "--config", cfgPath, "--quiet", "login", "--timeout", "10s")
	require.Error(t, err)
	assert.Equal(t, ExitCodeAuthFailed, getExitCode(err))
	assert.Contains(t, err.Error(), "access_denied")

	out, _, err := runCLI(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestFetch_NotLoggedIn(t *testing.T) {
	ts := newTestServer(t)
	cfgPath := writeTestConfig(t, ts)

	_, _, err := runCLI(t, "--config", cfgPath, "fetch", "me")
	require.Error(t, err)
	assert.Equal(t, ExitCodeNotLoggedIn, getExitCode(err))
}

func TestLogout_NotLoggedIn(t *testing.T) {
	ts := newTestServer(t)
	cfgPath := writeTestConfig(t, ts)

	_, stderr, err := runCLI(t, "--config", cfgPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Not logged in")
	assert.Zero(t, ts.revokeCalls.Load())
}

func TestInsecureRedirectURI(t *testing.T) {
	ts := newTestServer(t)
	cfgPath := writeTestConfig(t, ts)

	_, _, err := runCLI(t, "--config", cfgPath, "--redirect-uri", "http://app.example/callback", "status")
	require.Error(t, err)
	assert.Equal(t, ExitCodeInsecureContext, getExitCode(err))
}

func TestFlagsOverrideConfig(t *testing.T) {
	ts := newTestServer(t)
	cfgPath := writeTestConfig(t, ts)

	out, _, err := runCLI(t, "--config", cfgPath, "--client-id", "from-flag", "--storage", "memory", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "from-flag")
	assert.Contains(t, out, "memory")
}

func TestInvalidConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: https://auth.example.com\n"), 0o600))

	_, _, err := runCLI(t, "--config", path, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clientId")
	assert.Equal(t, ExitCodeError, getExitCode(err))
}

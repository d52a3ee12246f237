package page

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/giantswarm/oauth-session/pkg/logging"
)

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTmpl = template.Must(template.New("success").Parse(callbackSuccessHTML))
	errorTmpl   = template.Must(template.New("error").Parse(callbackErrorHTML))
)

// CallbackServer is a temporary local HTTP server that receives the
// authorization server's redirect. It accepts a single callback.
type CallbackServer struct {
	host     string
	port     int
	path     string
	server   *http.Server
	listener net.Listener
	resultCh chan *url.URL
	errorCh  chan error
	done     chan struct{}
	once     sync.Once
	stopOnce sync.Once
}

// NewCallbackServer creates a server for redirects to redirectURI.
// A zero port in redirectURI selects a free port on Start.
func NewCallbackServer(redirectURI *url.URL) (*CallbackServer, error) {
	if redirectURI == nil || !IsLoopbackHost(redirectURI.Hostname()) {
		return nil, fmt.Errorf("callback server requires a loopback redirect URI, got %v", redirectURI)
	}
	if redirectURI.Scheme != "http" {
		return nil, fmt.Errorf("callback server only serves http, got %s", redirectURI.Scheme)
	}

	port := 0
	if p := redirectURI.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid callback port %q: %w", p, err)
		}
		port = n
	}

	path := redirectURI.Path
	if path == "" {
		path = "/"
	}

	return &CallbackServer{
		host:     redirectURI.Hostname(),
		port:     port,
		path:     path,
		resultCh: make(chan *url.URL, 1),
		errorCh:  make(chan error, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start begins listening. The server stops when ctx is cancelled or Stop is
// called, whichever happens first.
func (s *CallbackServer) Start(ctx context.Context) error {
	listenHost := s.host
	if listenHost == "localhost" {
		listenHost = "127.0.0.1"
	}
	addr := net.JoinHostPort(listenHost, strconv.Itoa(s.port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	logging.Debug("Page", "Callback server listening on %s", s.RedirectURI())
	return nil
}

// WaitForCallback blocks until the redirect arrives and returns its full URL.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*url.URL, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.path {
		http.NotFound(w, r)
		return
	}

	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	received := &url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(s.host, strconv.Itoa(s.port)),
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}

	query := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var err error
	if e := query.Get("error"); e != "" {
		err = errorTmpl.Execute(w, map[string]string{
			"Error":       e,
			"Description": query.Get("error_description"),
		})
	} else {
		err = successTmpl.Execute(w, nil)
	}
	if err != nil {
		logging.Warn("Page", "Failed to render callback page: %v", err)
	}

	select {
	case s.resultCh <- received:
	default:
	}

	// Give the browser time to receive the page before shutting down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		close(s.done)
	})
}

// RedirectURI returns the redirect URI served, with the bound port.
func (s *CallbackServer) RedirectURI() string {
	return (&url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(s.host, strconv.Itoa(s.port)),
		Path:   s.path,
	}).String()
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	return s.port
}

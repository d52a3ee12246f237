package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-session/internal/config"
	"github.com/giantswarm/oauth-session/internal/page"
	"github.com/giantswarm/oauth-session/internal/session"
	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/logging"
	"github.com/giantswarm/oauth-session/pkg/oauth"
)

const httpTimeout = 30 * time.Second

// browserOpener launches the system browser for `login`.
var browserOpener = browser.OpenURL

// options holds the global flags shared by all subcommands.
type options struct {
	configPath  string
	server      string
	clientID    string
	scopes      []string
	redirectURI string
	storageType string
	storagePath string
	logLevel    string
	quiet       bool
}

func (o *options) addFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default is $HOME/.config/oauth-session/config.yaml)")
	flags.StringVar(&o.server, "server", "", "Base URL of the authorization server")
	flags.StringVar(&o.clientID, "client-id", "", "OAuth client ID")
	flags.StringSliceVar(&o.scopes, "scope", nil, "Scopes to request (repeatable or comma-separated)")
	flags.StringVar(&o.redirectURI, "redirect-uri", "", "Redirect URI registered for the client (default http://127.0.0.1:<callback port>/callback)")
	flags.StringVar(&o.storageType, "storage", "", "Storage backend: memory, file, redis, sqlite or keyring")
	flags.StringVar(&o.storagePath, "storage-path", "", "Path of the file or sqlite storage")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "Suppress non-essential output")
}

// loadConfig reads the configuration and applies flags on top.
func (o *options) loadConfig(cmd *cobra.Command) (config.Config, error) {
	initLogging(cmd, o.logLevel)

	path := o.configPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server = o.server
	}
	if flags.Changed("client-id") {
		cfg.ClientID = o.clientID
	}
	if flags.Changed("scope") {
		cfg.Scopes = o.scopes
	}
	if flags.Changed("redirect-uri") {
		cfg.RedirectURI = o.redirectURI
	}
	if flags.Changed("storage") {
		cfg.Storage.Type = o.storageType
	}
	if flags.Changed("storage-path") {
		cfg.Storage.Path = o.storagePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	initLogging(cmd, cfg.LogLevel)
	return cfg, nil
}

func initLogging(cmd *cobra.Command, level string) {
	parsed, ok := logging.ParseLevel(level)
	if !ok || level == "" {
		parsed = logging.LevelWarn
	}
	logging.InitForCLI(parsed, cmd.ErrOrStderr())
}

// redirectURI returns the configured redirect URI or the local callback default.
func redirectURI(cfg config.Config) string {
	if cfg.RedirectURI != "" {
		return cfg.RedirectURI
	}
	return fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Callback.Port, config.DefaultCallbackPath)
}

// hostFactory creates the page a session runs on.
type hostFactory func(cfg config.Config, store storage.FlowStorage) (page.Context, error)

// headlessHost places the session at the redirect URI without a browser.
func headlessHost(cfg config.Config, store storage.FlowStorage) (page.Context, error) {
	return page.NewHeadless(redirectURI(cfg), store)
}

// sessionEnv bundles a session with the resources it owns.
type sessionEnv struct {
	cfg     config.Config
	store   storage.FlowStorage
	session *session.Session

	mu   sync.Mutex
	errs []error
}

// openSession loads the configuration, opens storage and creates a session
// on the page built by newHost.
func (o *options) openSession(cmd *cobra.Command, newHost hostFactory) (*sessionEnv, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cmd.Context(), cfg.StorageBackend())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	env := &sessionEnv{cfg: cfg, store: store}

	host, err := newHost(cfg, store)
	if err != nil {
		env.Close()
		return nil, err
	}

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		env.Close()
		return nil, err
	}
	clientCfg = boundRedirectURI(clientCfg, host)

	env.session, err = session.New(clientCfg, host,
		session.WithHTTPClient(&http.Client{Timeout: httpTimeout}),
		session.WithErrorHandler(env.report),
	)
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// boundRedirectURI replaces a zero port in the configured redirect URI with
// the port the host's listener was bound to.
func boundRedirectURI(cfg oauth.ClientConfig, host page.Context) oauth.ClientConfig {
	configured, err := url.Parse(cfg.RedirectURI)
	if err != nil || configured.Port() != "0" {
		return cfg
	}
	current := host.CurrentURL()
	if current == nil || current.Port() == "0" {
		return cfg
	}
	configured.Host = current.Host
	return cfg.WithRedirectURI(configured.String())
}

func (e *sessionEnv) report(err error) {
	logging.Warn("CLI", "%v", err)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

// reported returns the errors handed to the session's error handler.
func (e *sessionEnv) reported() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

// Close releases the storage backend.
func (e *sessionEnv) Close() {
	if err := storage.Close(e.store); err != nil {
		logging.Warn("CLI", "Failed to close storage: %v", err)
	}
}

// restore opens a headless session and restores the persisted login.
func (o *options) restore(cmd *cobra.Command) (*sessionEnv, error) {
	env, err := o.openSession(cmd, headlessHost)
	if err != nil {
		return nil, err
	}
	if err := env.session.RestoreLogin(cmd.Context()); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// requireLogin is like restore but fails with oauth.ErrNotLoggedIn when no
// token is held.
func (o *options) requireLogin(cmd *cobra.Command) (*sessionEnv, error) {
	env, err := o.restore(cmd)
	if err != nil {
		return nil, err
	}
	if !env.session.IsLoggedIn() {
		env.Close()
		return nil, notLoggedIn()
	}
	return env, nil
}

func (o *options) printf(cmd *cobra.Command, format string, args ...interface{}) {
	if !o.quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), format, args...)
	}
}

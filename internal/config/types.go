package config

import (
	"time"

	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/oauth"
)

// Config is the top-level configuration of oauth-session.
type Config struct {
	// Server is the base URL of the authorization server.
	Server      string          `yaml:"server" env:"SERVER"`
	ClientID    string          `yaml:"clientId" env:"CLIENT_ID"`
	Scopes      []string        `yaml:"scopes,omitempty" env:"SCOPES" envSeparator:","`
	RedirectURI string          `yaml:"redirectUri,omitempty" env:"REDIRECT_URI"`
	Endpoints   EndpointsConfig `yaml:"endpoints,omitempty" envPrefix:"ENDPOINTS_"`

	// APIBaseURL is the root of the API called by `fetch`. Defaults to Server.
	APIBaseURL string `yaml:"apiBaseUrl,omitempty" env:"API_BASE_URL"`

	Callback CallbackConfig `yaml:"callback,omitempty" envPrefix:"CALLBACK_"`
	Storage  StorageConfig  `yaml:"storage,omitempty" envPrefix:"STORAGE_"`
	LogLevel string         `yaml:"logLevel,omitempty" env:"LOG_LEVEL"`
}

// EndpointsConfig overrides the endpoint paths below Server.
type EndpointsConfig struct {
	Authorize string `yaml:"authorize,omitempty" env:"AUTHORIZE"`
	Token     string `yaml:"token,omitempty" env:"TOKEN"`
	Revoke    string `yaml:"revoke,omitempty" env:"REVOKE"`
}

// CallbackConfig configures the local redirect listener used by `login`.
type CallbackConfig struct {
	Port        int           `yaml:"port,omitempty" env:"PORT"`
	Timeout     time.Duration `yaml:"timeout,omitempty" env:"TIMEOUT"`
	OpenBrowser bool          `yaml:"openBrowser" env:"OPEN_BROWSER"`
}

// StorageConfig selects where flow state and tokens are persisted.
type StorageConfig struct {
	Type           string      `yaml:"type,omitempty" env:"TYPE"`
	Path           string      `yaml:"path,omitempty" env:"PATH"`
	Redis          RedisConfig `yaml:"redis,omitempty" envPrefix:"REDIS_"`
	KeyringService string      `yaml:"keyringService,omitempty" env:"KEYRING_SERVICE"`
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty" env:"ADDR"`
	Password  string `yaml:"password,omitempty" env:"PASSWORD"`
	DB        int    `yaml:"db,omitempty" env:"DB"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" env:"KEY_PREFIX"`
}

// ClientConfig derives the OAuth client configuration.
func (c Config) ClientConfig() (oauth.ClientConfig, error) {
	return oauth.NewClientConfig(c.Server, c.ClientID, c.Scopes, c.RedirectURI, oauth.EndpointPaths{
		Authorize: c.Endpoints.Authorize,
		Token:     c.Endpoints.Token,
		Revoke:    c.Endpoints.Revoke,
	})
}

// StorageBackend converts the storage section for storage.New.
func (c Config) StorageBackend() storage.Config {
	return storage.Config{
		Type: c.Storage.Type,
		Path: c.Storage.Path,
		Redis: storage.RedisConfig{
			Addr:      c.Storage.Redis.Addr,
			Password:  c.Storage.Redis.Password,
			DB:        c.Storage.Redis.DB,
			KeyPrefix: c.Storage.Redis.KeyPrefix,
		},
		KeyringService: c.Storage.KeyringService,
	}
}

// APIBase returns the base URL for authenticated API calls.
func (c Config) APIBase() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	return c.Server
}

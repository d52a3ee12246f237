package config

import (
	"time"

	"github.com/giantswarm/oauth-session/internal/storage"
)

const (
	// DefaultCallbackPort is the default port of the local redirect listener.
	DefaultCallbackPort = 3000

	// DefaultCallbackPath is the path of the default redirect URI.
	DefaultCallbackPath = "/callback"

	// DefaultCallbackTimeout bounds how long `login` waits for the redirect.
	DefaultCallbackTimeout = 5 * time.Minute

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "OAUTH_SESSION_"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Callback: CallbackConfig{
			Port:        DefaultCallbackPort,
			Timeout:     DefaultCallbackTimeout,
			OpenBrowser: true,
		},
		Storage: StorageConfig{
			Type:           storage.TypeFile,
			KeyringService: storage.DefaultKeyringService,
			Redis: RedisConfig{
				KeyPrefix: storage.DefaultRedisKeyPrefix,
			},
		},
		LogLevel: "warn",
	}
}

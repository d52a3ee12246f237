// Package config loads the oauth-session configuration.
//
// Configuration is read from a single YAML file, by default
// ~/.config/oauth-session/config.yaml, on top of GetDefaultConfig. Every
// field can then be overridden by an environment variable prefixed with
// OAUTH_SESSION_, for example OAUTH_SESSION_CLIENT_ID or
// OAUTH_SESSION_STORAGE_REDIS_ADDR. Command line flags are applied last by
// the CLI.
//
// Example:
//
//	server: https://auth.example.com
//	clientId: my-app
//	scopes: [read, write]
//	callback:
//	  port: 3000
//	  timeout: 5m
//	storage:
//	  type: keyring
package config

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/oauth-session/pkg/logging"
)

const (
	userConfigDir  = ".config/oauth-session"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns ~/.config/oauth-session/config.yaml.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir, configFileName)
}

// LoadConfig reads the YAML file at path on top of the defaults and then
// applies OAUTH_SESSION_* environment overrides. A missing file is not an
// error. The result is not validated.
func LoadConfig(path string) (Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("Config", "No config file found at %s, using defaults", path)
	case err != nil:
		return Config{}, fmt.Errorf("error reading config from %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		logging.Info("Config", "Loaded configuration from %s", path)
	}

	if err := ApplyEnv(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ApplyEnv overrides fields of config from OAUTH_SESSION_* variables. Unset
// variables leave the field unchanged.
func ApplyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

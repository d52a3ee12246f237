package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks that the configuration can drive a session.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Server) == "" {
		errs.Add("server", "is required")
	} else if err := validateAbsoluteURL(c.Server); err != nil {
		errs.Add("server", err.Error(), c.Server)
	}
	if strings.TrimSpace(c.ClientID) == "" {
		errs.Add("clientId", "is required")
	}
	if c.RedirectURI != "" {
		if err := validateAbsoluteURL(c.RedirectURI); err != nil {
			errs.Add("redirectUri", err.Error(), c.RedirectURI)
		}
	}
	if c.APIBaseURL != "" {
		if err := validateAbsoluteURL(c.APIBaseURL); err != nil {
			errs.Add("apiBaseUrl", err.Error(), c.APIBaseURL)
		}
	}

	if c.Callback.Port < 0 || c.Callback.Port > 65535 {
		errs.Add("callback.port", "must be between 0 and 65535", c.Callback.Port)
	}
	if c.Callback.Timeout < 0 {
		errs.Add("callback.timeout", "must not be negative", c.Callback.Timeout)
	}

	switch strings.ToLower(c.Storage.Type) {
	case "", storage.TypeMemory, storage.TypeFile, storage.TypeSQLite, storage.TypeKeyring:
	case storage.TypeRedis:
		if c.Storage.Redis.Addr == "" {
			errs.Add("storage.redis.addr", "is required for the redis backend")
		}
	default:
		errs.Add("storage.type", "must be one of memory, file, redis, sqlite, keyring", c.Storage.Type)
	}

	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			errs.Add("logLevel", "must be one of debug, info, warn, error", c.LogLevel)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

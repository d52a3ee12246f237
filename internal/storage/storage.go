package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FlowStorage is a durable string key/value store for in-flight authorization
// state and issued tokens. Implementations must be safe for concurrent use.
type FlowStorage interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys returns a snapshot of all stored keys.
	Keys(ctx context.Context) ([]string, error)
}

// Backend types accepted by New.
const (
	TypeMemory  = "memory"
	TypeFile    = "file"
	TypeRedis   = "redis"
	TypeSQLite  = "sqlite"
	TypeKeyring = "keyring"
)

const (
	defaultDir            = ".config/oauth-session"
	defaultFileName       = "storage.json"
	defaultSQLiteFileName = "storage.db"

	// DefaultKeyringService is the OS keyring service name used when none is configured.
	DefaultKeyringService = "oauth-session"

	// DefaultRedisKeyPrefix namespaces all keys written to redis.
	DefaultRedisKeyPrefix = "oauth-session:"
)

// Config selects and configures a storage backend.
type Config struct {
	Type           string
	Path           string
	Redis          RedisConfig
	KeyringService string
}

// New creates the storage backend described by cfg. An empty type selects
// the file backend.
func New(ctx context.Context, cfg Config) (FlowStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeMemory:
		return NewMemory(), nil
	case TypeFile, "":
		path := cfg.Path
		if path == "" {
			p, err := defaultPath(defaultFileName)
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewFile(path)
	case TypeRedis:
		return NewRedis(ctx, cfg.Redis)
	case TypeSQLite:
		path := cfg.Path
		if path == "" {
			p, err := defaultPath(defaultSQLiteFileName)
			if err != nil {
				return nil, err
			}
			path = p
		}
		return OpenSQLite(ctx, path)
	case TypeKeyring:
		return NewKeyring(cfg.KeyringService), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// Close releases resources held by s if its backend holds any.
func Close(s FlowStorage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// KeysWithMarker returns the keys of s that contain marker.
func KeysWithMarker(ctx context.Context, s FlowStorage, marker string) ([]string, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, k := range keys {
		if strings.Contains(k, marker) {
			matched = append(matched, k)
		}
	}
	return matched, nil
}

func defaultPath(name string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultDir, name), nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/oauth-session/pkg/logging"
)

const (
	lockTimeout       = 5 * time.Second
	lockRetryInterval = 100 * time.Millisecond
)

// File is a FlowStorage backed by one JSON document on disk.
//
// SECURITY: the document is written with 0600 permissions inside a 0700
// directory. Writes go to a temporary file that is renamed into place, and a
// separate lock file serializes access across processes.
type File struct {
	// mu serializes goroutines of this process; a flock.Flock reports an
	// already held lock as acquired.
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFile returns a file store at path, creating the parent directory.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the location of the storage document.
func (f *File) Path() string {
	return f.path
}

// Get implements FlowStorage.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := f.withLock(ctx, false, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		value, found = data[key]
		return nil
	})
	return value, found, err
}

// Set implements FlowStorage.
func (f *File) Set(ctx context.Context, key, value string) error {
	return f.withLock(ctx, true, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		data[key] = value
		return f.write(data)
	})
}

// Remove implements FlowStorage.
func (f *File) Remove(ctx context.Context, key string) error {
	return f.withLock(ctx, true, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		if _, ok := data[key]; !ok {
			return nil
		}
		delete(data, key)
		return f.write(data)
	})
}

// Keys implements FlowStorage.
func (f *File) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := f.withLock(ctx, false, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		keys = make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil
	})
	return keys, err
}

func (f *File) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = f.lock.TryLockContext(lockCtx, lockRetryInterval)
	} else {
		locked, err = f.lock.TryRLockContext(lockCtx, lockRetryInterval)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout after %v", lockTimeout)
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			logging.Warn("Storage", "Failed to release lock on %s: %v", f.path, err)
		}
	}()

	return fn()
}

func (f *File) read() (map[string]string, error) {
	data := make(map[string]string)

	// #nosec G304 -- path comes from configuration, not from request input
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse storage file %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".storage-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

// keyringIndexKey holds the JSON array of stored keys; OS keyrings cannot
// enumerate entries of a service.
const keyringIndexKey = "__index__"

// Keyring is a FlowStorage backed by the operating system keyring.
type Keyring struct {
	mu      sync.Mutex
	service string
}

// NewKeyring returns a keyring store for service.
func NewKeyring(service string) *Keyring {
	if service == "" {
		service = DefaultKeyringService
	}
	return &Keyring{service: service}
}

// Get implements FlowStorage.
func (k *Keyring) Get(_ context.Context, key string) (string, bool, error) {
	if key == keyringIndexKey {
		return "", false, nil
	}
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring get %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements FlowStorage.
func (k *Keyring) Set(_ context.Context, key, value string) error {
	if key == keyringIndexKey {
		return fmt.Errorf("key %q is reserved", key)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}

	index, err := k.readIndex()
	if err != nil {
		return err
	}
	if _, ok := index[key]; ok {
		return nil
	}
	index[key] = struct{}{}
	return k.writeIndex(index)
}

// Remove implements FlowStorage.
func (k *Keyring) Remove(_ context.Context, key string) error {
	if key == keyringIndexKey {
		return fmt.Errorf("key %q is reserved", key)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}

	index, err := k.readIndex()
	if err != nil {
		return err
	}
	if _, ok := index[key]; !ok {
		return nil
	}
	delete(index, key)
	return k.writeIndex(index)
}

// Keys implements FlowStorage.
func (k *Keyring) Keys(_ context.Context) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	index, err := k.readIndex()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(index))
	for key := range index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (k *Keyring) readIndex() (map[string]struct{}, error) {
	index := make(map[string]struct{})
	raw, err := keyring.Get(k.service, keyringIndexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyring read index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("keyring index is corrupt: %w", err)
	}
	for _, key := range keys {
		index[key] = struct{}{}
	}
	return index, nil
}

func (k *Keyring) writeIndex(index map[string]struct{}) error {
	if len(index) == 0 {
		if err := keyring.Delete(k.service, keyringIndexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring delete index: %w", err)
		}
		return nil
	}

	keys := make([]string, 0, len(index))
	for key := range index {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	raw, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("keyring marshal index: %w", err)
	}
	if err := keyring.Set(k.service, keyringIndexKey, string(raw)); err != nil {
		return fmt.Errorf("keyring write index: %w", err)
	}
	return nil
}

// Package storage is the durable client storage shared by the session and
// cart services. It holds JSON strings under fixed keys and is only ever a
// cache: the backend stays the source of truth once it has answered.
package storage

import (
	"context"
	"sync"
)

// Fixed keys.
const (
	KeyIdentity = "userData"
	KeyToken    = "token"
	KeyCart     = "campify-cart"
)

// SessionKeys are purged on logout.
var SessionKeys = []string{KeyIdentity, KeyToken, KeyCart}

// Store is a string key-value store that survives restarts.
type Store interface {
	// Get returns "" when key is not set.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Memory is a process-local Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

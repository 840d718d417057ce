package cache

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQuotaExceeded reports a write that the store refused for lack of space.
	ErrQuotaExceeded = errors.New("store quota exceeded")
	// ErrStoreUnavailable reports a store that was never connected.
	ErrStoreUnavailable = errors.New("store not initialized")
)

// Store is the persisted key-value store the player keeps its state in.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// Memory is an in-process Store. A positive quota caps the summed size of
// keys and values, the way browser storage does.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	quota  int
	used   int
	writes int
}

// NewMemory returns an empty store. quota <= 0 means unlimited.
func NewMemory(quota int) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + len(value)
	if old, ok := m.data[key]; ok {
		used -= len(old)
	} else {
		used += len(key)
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.used = used
	m.writes++
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

// Writes counts successful Set calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

package credstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a process-local Store. Failures can be injected per key so
// callers can exercise their error paths.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string

	failSet    map[string]int
	failRemove map[string]int
	failGet    bool
	sets       []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:     make(map[string]string),
		failSet:    make(map[string]int),
		failRemove: make(map[string]int),
	}
}

// FailSet makes the next n Set calls for key fail with ErrWriteFailed.
func (m *MemoryStore) FailSet(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet[key] = n
}

// FailRemove makes the next n Remove calls for key fail with ErrWriteFailed.
func (m *MemoryStore) FailRemove(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRemove[key] = n
}

// FailGet makes every Get fail with ErrUnavailable while set.
func (m *MemoryStore) FailGet(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = fail
}

// Set writes value under key.
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSet[key] > 0 {
		m.failSet[key]--
		return fmt.Errorf("%w: setting %s: injected failure", ErrWriteFailed, key)
	}
	m.values[key] = value
	m.sets = append(m.sets, key)
	return nil
}

// Get returns the value under key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet {
		return "", false, fmt.Errorf("%w: getting %s: injected failure", ErrUnavailable, key)
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Remove clears key.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failRemove[key] > 0 {
		m.failRemove[key]--
		return fmt.Errorf("%w: removing %s: injected failure", ErrWriteFailed, key)
	}
	delete(m.values, key)
	return nil
}

// Snapshot returns a copy of every stored key and value.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// SetOrder returns the keys of every successful Set, in call order.
func (m *MemoryStore) SetOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sets...)
}

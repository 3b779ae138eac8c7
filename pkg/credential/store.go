package credential

import (
	"context"
	"sync"
)

// Store is the persistence interface for pool state. Each pool is
// serialized as a single opaque blob under a stable key, so the
// Manager's read-modify-write cycle maps onto one Get and one Set.
//
// Implementations must be safe for concurrent use. Get returns nil (not
// an error) when the key has never been written.
type Store interface {
	// Get retrieves the blob stored under key, or nil if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the blob under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore implements Store with an in-process map. All data is lost
// when the process exits; it exists for tests and ephemeral deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get retrieves the blob stored under key, or nil if absent.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.data[key]
	if !ok {
		return nil, nil
	}

	// Copy so callers cannot mutate stored state.
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// Set stores the blob under key, replacing any previous value.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob := make([]byte, len(value))
	copy(blob, value)
	m.data[key] = blob
	return nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

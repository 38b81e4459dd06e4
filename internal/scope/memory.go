package scope

import (
	"context"
	"sync"
)

// MemoryScope implements Scope with in-process storage. Values last for the
// lifetime of the process, making it the short-lived (tab session) scope.
type MemoryScope struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryScope creates a new in-memory scope.
func NewMemoryScope() *MemoryScope {
	return &MemoryScope{
		items: make(map[string][]byte),
	}
}

// Get retrieves the value for key.
func (m *MemoryScope) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	// Copy to keep callers from mutating stored state.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set stores the value for key.
func (m *MemoryScope) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = stored
	return nil
}

// Delete removes the key.
func (m *MemoryScope) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Ensure MemoryScope implements Scope.
var _ Scope = (*MemoryScope)(nil)

package store

import (
	"context"
	"sync"
)

// MemoryBlobs keeps documents in process memory. Used for tests and
// STORE_BACKEND=memory.
type MemoryBlobs struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{data: make(map[string][]byte)}
}

func (m *MemoryBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), d...), true, nil
}

func (m *MemoryBlobs) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// NewMemory returns a Store backed by MemoryBlobs.
func NewMemory() *Collections {
	return NewCollections(NewMemoryBlobs())
}

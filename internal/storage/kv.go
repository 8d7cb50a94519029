package storage

import (
	"context"
	"sync"
)

// KV is the key-value persistence the headline state lives in. Get returns
// only the keys that exist; SetMany writes all values or none.
type KV interface {
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	SetMany(ctx context.Context, values map[string][]byte) error
	Close() error
}

// MemoryKV keeps everything in process memory. Used by tests and by the
// memory storage backend.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
	writes int
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, keys ...string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (m *MemoryKV) SetMany(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = append([]byte(nil), v...)
	}
	m.writes++
	return nil
}

// Writes reports how many SetMany calls succeeded.
func (m *MemoryKV) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *MemoryKV) Close() error { return nil }

package storage

import (
	"context"
	"sync"
)

// MemoryProvider keeps artifacts in memory. Intended for tests.
type MemoryProvider struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryProvider creates an empty in-memory store.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{objects: make(map[string][]byte)}
}

// Save stores a copy of data under objectName.
func (m *MemoryProvider) Save(_ context.Context, objectName string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[objectName] = buf
	return nil
}

// Get returns the stored object and whether it exists.
func (m *MemoryProvider) Get(objectName string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	return data, ok
}

// Names returns all stored object names.
func (m *MemoryProvider) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	return names
}

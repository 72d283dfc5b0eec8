package persist

import "sync"

// #region memory-adapter

// MemoryAdapter keeps documents in process memory. Used by tests, the replay
// harness, and sessions that opt out of durability.
type MemoryAdapter struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemoryAdapter returns an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{docs: make(map[string][]byte)}
}

// Load returns the stored document, or (nil, nil) if absent.
func (m *MemoryAdapter) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

// Save stores a copy of the document.
func (m *MemoryAdapter) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := make([]byte, len(data))
	copy(doc, data)
	m.docs[key] = doc
	return nil
}

// Close is a no-op.
func (m *MemoryAdapter) Close() error {
	return nil
}

// #endregion memory-adapter

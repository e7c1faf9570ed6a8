package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.data[key] = clone(value)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Commit(_ context.Context, b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range b.Writes() {
		if w.Value == nil {
			delete(s.data, w.Key)
			continue
		}
		s.data[w.Key] = clone(w.Value)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func clone(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

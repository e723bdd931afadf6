package store

import (
	"sync"

	"github.com/latticenet/core/pkg/cell"
)

// MemStore is an in-memory Store, used in tests and for short-lived peers
// that never need durability across process restarts.
type MemStore struct {
	mu   sync.RWMutex
	data map[cell.Hash][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[cell.Hash][]byte)}
}

func (s *MemStore) Get(h cell.Hash) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[h]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (s *MemStore) Put(h cell.Hash, encoded []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(encoded))
	copy(cp, encoded)
	s.data[h] = cp
	return nil
}

func (s *MemStore) Close() error { return nil }

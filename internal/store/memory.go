package store

import (
	"sync"

	"github.com/lawnchairsociety/questbridge/internal/quest"
)

// MemoryStore is a volatile Store keeping instances in a process-local map.
// Safe for concurrent access; every instance is cloned on the way in and out.
type MemoryStore struct {
	mu     sync.RWMutex
	quests map[string]*quest.Instance
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{quests: make(map[string]*quest.Instance)}
}

// Save stores a clone of the instance
func (s *MemoryStore) Save(q *quest.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quests[q.ID] = q.Clone()
	return nil
}

// Get returns a clone of the instance, or false if absent
func (s *MemoryStore) Get(id string) (*quest.Instance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, exists := s.quests[id]
	if !exists {
		return nil, false, nil
	}
	return q.Clone(), true, nil
}

// List returns clones of all stored instances
func (s *MemoryStore) List() ([]*quest.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*quest.Instance, 0, len(s.quests))
	for _, q := range s.quests {
		out = append(out, q.Clone())
	}
	return out, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

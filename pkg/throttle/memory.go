// Package throttle provides the in-process store behind the login throttle.
package throttle

import (
	"context"
	"sync"

	"github.com/lborres/bantay/core"
)

var _ core.ThrottleStore = (*MemoryStore)(nil)

// MemoryStore keeps throttle entries in a map for the life of the process.
// Entries are never evicted or swept; only Delete removes them.
//
// The mutex protects the map itself. It does not make the throttle's
// read-modify-write sequence atomic.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]core.ThrottleEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]core.ThrottleEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*core.ThrottleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, entry core.ThrottleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

package session

import (
	"context"
	"sort"
	"sync"
)

// Store is the pluggable persistence boundary for session data. The
// orchestration core only ever reads and writes whole sessions through
// this interface.
type Store interface {
	// Get returns the session for key, with found=false when none exists.
	Get(ctx context.Context, key string) (data *Data, found bool, err error)
	// Set stores the session for key, replacing any previous value.
	Set(ctx context.Context, key string, data *Data) error
	// Delete removes the session for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the stored session keys.
	Keys(ctx context.Context) ([]string, error)
}

// MemoryStore is a Store backed by a process-local map. Values are deep
// copied on the way in and out so callers can't mutate stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Data
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Data),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*Data, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sessions[key]
	if !ok {
		return nil, false, nil
	}
	return data.Clone(), true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = data.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Keys implements Store.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.sessions))
	for key := range s.sessions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

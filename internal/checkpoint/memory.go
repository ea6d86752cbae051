package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store backed by a map. It is intended for
// tests and single-process deployments; state does not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	locker    *sessionLocker
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
		locker:    newSessionLocker(),
	}
}

// Get returns a copy of the stored snapshot so callers can never mutate the
// store's internal state through the returned slice.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(snapshot))
	copy(out, snapshot)
	return out, nil
}

// Put stores a copy of snapshot for sessionID, serialized against any other
// concurrent write for the same session.
func (s *MemoryStore) Put(ctx context.Context, sessionID string, snapshot []byte) error {
	unlock := s.locker.lock(sessionID)
	defer unlock()

	stored := make([]byte, len(snapshot))
	copy(stored, snapshot)

	s.mu.Lock()
	s.snapshots[sessionID] = stored
	s.mu.Unlock()
	return nil
}

// Delete removes sessionID's snapshot, if any.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	unlock := s.locker.lock(sessionID)
	defer unlock()

	s.mu.Lock()
	delete(s.snapshots, sessionID)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

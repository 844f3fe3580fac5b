package world

import (
	"sync"
	"sync/atomic"
)

// Store holds the current snapshot. Reads never block and always return a
// fully applied snapshot; writers are serialized.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Snapshot]
}

// NewStore creates a store holding the empty world.
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(Empty())
	return s
}

// Snapshot returns the latest committed snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Update derives a new snapshot from the current one. If fn returns an error
// or a nil snapshot the store is left unchanged.
func (s *Store) Update(fn func(cur *Snapshot) (*Snapshot, error)) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cur.Load()
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	if next == nil {
		return cur, nil
	}
	s.cur.Store(next)
	return next, nil
}

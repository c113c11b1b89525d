// Package inmemory provides a process-local memory store for tests and
// ephemeral agents.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

// Store implements memory.Store using an in-memory map.
type Store struct {
	// mu is a read write sync mutex for locking the mapping of entries
	mu sync.RWMutex

	// entries is keyed by the (scope, namespace, id) reference of each entry
	entries map[memory.Ref]*memory.Entry
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		entries: make(map[memory.Ref]*memory.Entry),
	}
}

// Add stores a copy of entry, replacing any entry with the same reference.
func (s *Store) Add(_ context.Context, entry *memory.Entry) (*memory.Entry, error) {
	if entry == nil {
		return nil, errors.New("cannot store nil entry")
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Ref()] = entry.Clone()
	return entry.Clone(), nil
}

// Get retrieves an entry by reference.
func (s *Store) Get(_ context.Context, id string, scope memory.Scope, namespace string) (*memory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[memory.Ref{ID: id, Scope: scope, Namespace: namespace}]
	if !ok {
		return nil, memory.NotFoundError(id, scope, namespace)
	}

	return e.Clone(), nil
}

// Update is not supported; callers fall back to delete plus add.
func (s *Store) Update(_ context.Context, _ *memory.Entry) (*memory.Entry, error) {
	return nil, memory.Errorf(memory.CodeNotImplemented, "inmemory store does not support in-place update")
}

// Delete removes an entry and reports whether it existed.
func (s *Store) Delete(_ context.Context, id string, scope memory.Scope, namespace string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := memory.Ref{ID: id, Scope: scope, Namespace: namespace}
	if _, ok := s.entries[ref]; !ok {
		return false, nil
	}

	delete(s.entries, ref)
	return true, nil
}

// Query ranks the partition of q.
func (s *Store) Query(_ context.Context, q memory.Query) (*memory.ListResult, error) {
	return memory.Paginate(memory.Rank(s.snapshot(), q), q.Cursor, q.Limit), nil
}

// List returns the partition in creation order.
func (s *Store) List(_ context.Context, scope memory.Scope, namespace string, limit int, cursor memory.Cursor, owner string) (*memory.ListResult, error) {
	q := memory.Query{Scope: scope, Namespace: namespace, Owner: owner}
	return memory.Paginate(memory.Rank(s.snapshot(), q), cursor, limit), nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored entries across all partitions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

func (s *Store) snapshot() []*memory.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*memory.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}

	return out
}

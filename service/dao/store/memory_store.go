package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/viant/procmem/service/dao"
)

// MemoryStore is a generic in-memory implementation of dao.Service.
// It keeps entities of type *T mapped by an ordered key K obtained from the
// supplied keySelector function. List returns records in key order so that
// dumps built from it are deterministic.
type MemoryStore[K cmp.Ordered, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K cmp.Ordered, T any](keySelector func(*T) K) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
	}
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Load returns a record by key or dao.ErrNotFound.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return v, nil
}

// Delete removes a record; deleting a missing key is not an error.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// List returns all stored records ordered by key.
func (s *MemoryStore[K, T]) List(_ context.Context, _ ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	out := make([]*T, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.records[key])
	}
	return out, nil
}

// Len returns the number of records
func (s *MemoryStore[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

package memory

import (
	"context"
	"sync"

	"github.com/RoleGate/rolegate/internal/domain/sod"
)

// SDSetStore implements sod.Store with an in-memory map.
type SDSetStore struct {
	mu   sync.RWMutex
	sets map[string]*sod.SDSet
}

// NewSDSetStore creates an empty in-memory SD-set store.
func NewSDSetStore() *SDSetStore {
	return &SDSetStore{sets: make(map[string]*sod.SDSet)}
}

// GetSets returns all sets of the given type.
func (s *SDSetStore) GetSets(ctx context.Context, t sod.SetType) ([]sod.SDSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sod.SDSet
	for _, set := range s.sets {
		if set.Type == t {
			out = append(out, *copySDSet(set))
		}
	}
	return out, nil
}

// GetSet returns a set by name.
func (s *SDSetStore) GetSet(ctx context.Context, name string) (*sod.SDSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[name]
	if !ok {
		return nil, sod.ErrSetNotFound
	}
	return copySDSet(set), nil
}

// SaveSet creates or updates a set.
func (s *SDSetStore) SaveSet(ctx context.Context, set *sod.SDSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sets[set.Name] = copySDSet(set)
	return nil
}

// DeleteSet removes a set by name.
func (s *SDSetStore) DeleteSet(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sets[name]; !ok {
		return sod.ErrSetNotFound
	}
	delete(s.sets, name)
	return nil
}

func copySDSet(set *sod.SDSet) *sod.SDSet {
	c := *set
	c.Members = append([]string(nil), set.Members...)
	return &c
}

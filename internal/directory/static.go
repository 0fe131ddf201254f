package directory

import (
	"context"
	"sync"
)

// Static is an in-memory Directory, used by tests and local tooling.
type Static struct {
	mu      sync.RWMutex
	parties map[string]Party
}

func NewStatic(parties ...Party) *Static {
	s := &Static{parties: make(map[string]Party, len(parties))}
	for _, p := range parties {
		s.parties[p.ID] = p
	}
	return s
}

// Put adds or replaces a party.
func (s *Static) Put(p Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[p.ID] = p
}

func (s *Static) GetByID(_ context.Context, id string) (*Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

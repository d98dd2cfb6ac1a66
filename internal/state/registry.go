package state

import (
	"maps"
	"slices"
	"sync"
)

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

func (r *Registry) Get(portfolioID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[portfolioID]
	return s, ok
}

// GetOrCreate returns the existing session or registers the one built by newFn.
// newFn is called outside the lock and may be slow (remote load).
func (r *Registry) GetOrCreate(portfolioID string, newFn func() *Session) *Session {
	if s, ok := r.Get(portfolioID); ok {
		return s
	}

	created := newFn()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[portfolioID]; ok {
		return s
	}
	r.sessions[portfolioID] = created
	return created
}

func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*Session, 0, len(r.sessions))
	for _, id := range slices.Sorted(maps.Keys(r.sessions)) {
		res = append(res, r.sessions[id])
	}
	return res
}

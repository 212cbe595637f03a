package state

import "sync"

// Store owns the current application state. All mutation goes through
// Apply, which serializes dispatch so there is never a window where two
// actions are being applied concurrently.
type Store struct {
	mu      sync.RWMutex
	current State
}

// NewStore creates a store holding the initial state.
func NewStore() *Store {
	return &Store{current: Initial()}
}

// Apply advances the state through the pure Update function and returns
// the resulting state.
func (s *Store) Apply(action Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Update(s.current, action)
	return s.current
}

// Current returns a snapshot of the current state.
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

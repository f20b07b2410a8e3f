package carousel

import "sync"

// Store keeps the displayed image index per record id
type Store struct {
	mu      sync.Mutex
	indices map[string]int
}

// NewStore creates an empty carousel store
func NewStore() *Store {
	return &Store{indices: make(map[string]int)}
}

// Index returns the raw cursor for id, 0 if never advanced
func (s *Store) Index(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indices[id]
}

// Current returns the cursor for id normalized into [0, total)
func (s *Store) Current(id string, total int) int {
	if total <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indices[id] % total
}

// Advance moves the cursor for id one step forward (direction > 0) or back
// (direction < 0) with wraparound and returns the new index. total must be
// at least 1; otherwise the cursor is left alone and 0 is returned.
func (s *Store) Advance(id string, total, direction int) int {
	if total <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.indices[id] % total
	switch {
	case direction > 0:
		current = (current + 1) % total
	case direction < 0:
		current = (current - 1 + total) % total
	}
	s.indices[id] = current
	return current
}

// Len returns the number of ids with a cursor
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.indices)
}

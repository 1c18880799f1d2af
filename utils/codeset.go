package utils

import "sync"

// CodeSet is a thread-safe set of registry codes already handled in a run.
type CodeSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewCodeSet creates an empty CodeSet.
func NewCodeSet() *CodeSet {
	return &CodeSet{seen: make(map[string]struct{})}
}

// Add returns true if the code was newly added, false if already present.
func (s *CodeSet) Add(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[code]; exists {
		return false
	}
	s.seen[code] = struct{}{}
	return true
}

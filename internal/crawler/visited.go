package crawler

import "sync"

// VisitedSet tracks every attribute path that has been queued for
// description. It is the only shared mutable state between workers; a path
// enters exactly once and is never removed, which is what bounds the crawl on
// cyclic graphs.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// TryInsert atomically tests and inserts a path. It returns true when the
// path was newly inserted, in which case the caller must schedule work for
// it; racing callers see exactly one true.
func (s *VisitedSet) TryInsert(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[path]; ok {
		return false
	}
	s.seen[path] = struct{}{}
	return true
}

// Len reports how many paths have been inserted so far.
func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

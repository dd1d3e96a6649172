package listing

import "sync"

// Set is the ordered result of one search. Entries are mutated only through
// Resolve; readers always receive copies.
type Set struct {
	mu    sync.RWMutex
	items []Listing
	index map[string]int
}

func NewSet(items []Listing) *Set {
	s := &Set{
		items: make([]Listing, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		if _, dup := s.index[it.ID]; dup || it.ID == "" {
			continue
		}
		s.index[it.ID] = len(s.items)
		s.items = append(s.items, it)
	}
	return s
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// IDs returns listing ids in search order.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.items))
	for i, it := range s.items {
		ids[i] = it.ID
	}
	return ids
}

func (s *Set) Get(id string) (Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Listing{}, false
	}
	return s.items[i], true
}

func (s *Set) Snapshot() []Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Listing, len(s.items))
	copy(out, s.items)
	return out
}

// Resolve replaces the loading placeholder of id with d and applies any
// year-built correction it carries. It reports false when id is unknown or
// was already resolved, so each listing is enriched at most once.
func (s *Set) Resolve(id string, d AgentDetail) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok || s.items[i].Agent.State != AgentLoading {
		return false
	}
	if d.State == "" {
		d.State = AgentResolved
	}
	s.items[i].Agent = d
	if d.YearBuilt > 0 {
		s.items[i].YearBuilt = d.YearBuilt
	}
	return true
}

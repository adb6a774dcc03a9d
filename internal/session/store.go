package session

import (
	"sort"
	"sync"
)

// Store tracks the observable Record of every session this run has started.
// Sessions publish updates from their own goroutines; readers always get
// copies. Terminal records stay until the monitor reaps them, so a just-ended
// session is still visible to the API and feed.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
	}
}

func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// All returns copies of every record, oldest session first.
func (s *Store) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

func (s *Store) Update(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r.Clone()
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.records {
		if !r.IsTerminal() {
			count++
		}
	}
	return count
}

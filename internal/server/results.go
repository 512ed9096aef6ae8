package server

import (
	"sync"

	"github.com/ironsheep/block-art-mcp/internal/blocks"
)

// DefaultStoredResults is how many recent results are kept by default.
const DefaultStoredResults = 20

// ResultStore keeps the most recent conversion results by ID so clients can
// fetch the full grid after a convert call.
//
// The store is safe for concurrent access. When full, the oldest stored
// result is dropped.
type ResultStore struct {
	mu       sync.RWMutex
	results  map[string]*blocks.Result
	order    []string
	capacity int
}

// NewResultStore creates a store holding up to capacity results. Zero or
// negative means DefaultStoredResults.
func NewResultStore(capacity int) *ResultStore {
	if capacity <= 0 {
		capacity = DefaultStoredResults
	}
	return &ResultStore{
		results:  make(map[string]*blocks.Result),
		capacity: capacity,
	}
}

// Put stores res under res.ID.
func (s *ResultStore) Put(res *blocks.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[res.ID]; !exists {
		s.order = append(s.order, res.ID)
	}
	s.results[res.ID] = res

	for len(s.order) > s.capacity {
		delete(s.results, s.order[0])
		s.order = s.order[1:]
	}
}

// Get returns the result stored under id.
func (s *ResultStore) Get(id string) (*blocks.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[id]
	return res, ok
}

// Len returns the number of stored results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Clear removes all stored results.
func (s *ResultStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]*blocks.Result)
	s.order = nil
}

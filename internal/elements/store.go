package elements

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the element dataset currently in service. Reads are a single
// atomic load so request handlers never block on a refresh in flight.
type Store struct {
	current   atomic.Pointer[Dataset]
	refreshMu sync.Mutex
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil before the first Set.
func (s *Store) Get() *Dataset {
	return s.current.Load()
}

// Set atomically publishes ds as the current dataset. In-flight readers
// keep whatever dataset they already loaded.
func (s *Store) Set(ds *Dataset) {
	s.current.Store(ds)
}

// AgeSeconds returns how long ago the current dataset was fetched,
// or -1 when no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.current.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Lock serializes refresh operations. It does not block readers.
func (s *Store) Lock() {
	s.refreshMu.Lock()
}

// Unlock releases the refresh lock.
func (s *Store) Unlock() {
	s.refreshMu.Unlock()
}

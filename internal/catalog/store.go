package catalog

import "sync/atomic"

// Store holds the current catalog with atomic replacement, so readers never
// block while a refresh swaps the list in.
type Store struct {
	infos atomic.Pointer[[]Info]
}

// NewStore creates an empty catalog store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil when none has been loaded.
func (s *Store) Get() []Info {
	p := s.infos.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Set replaces the current catalog.
func (s *Store) Set(infos []Info) {
	s.infos.Store(&infos)
}

package dirtree

import "sync"

// Shared hands one Cache to any number of consumers. The cache is built on
// the first Acquire and closed when the last consumer releases it; the next
// Acquire builds a fresh one.
type Shared struct {
	mu    sync.Mutex
	build func() (*Cache, error)
	cache *Cache
	refs  int
}

// NewShared returns a Shared that builds caches with build.
func NewShared(build func() (*Cache, error)) *Shared {
	return &Shared{build: build}
}

// Acquire returns the shared cache, building it if needed. Every successful
// Acquire must be paired with a Release.
func (s *Shared) Acquire() (*Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache == nil {
		c, err := s.build()
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	s.refs++
	return s.cache, nil
}

// Release drops one reference and tears the cache down on the last one.
func (s *Shared) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	c := s.cache
	s.cache = nil
	return c.Close()
}

// Refs returns the number of outstanding references.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

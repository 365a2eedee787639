// Package memory is an in-process db.Store for single-node deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/fastload/internal/db"
)

var _ db.Store = (*Store)(nil)

// Store keeps values in unbounded expirable LRU caches, one per TTL seen by
// SetMany. A key lives in exactly one cache.
type Store struct {
	mu     sync.Mutex
	caches map[time.Duration]*expirable.LRU[string, []byte]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{caches: make(map[time.Duration]*expirable.LRU[string, []byte])}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops all values.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.caches {
		c.Purge()
	}
	s.caches = make(map[time.Duration]*expirable.LRU[string, []byte])
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Get returns a copy of the value at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.caches {
		if v, ok := c.Get(key); ok {
			return append([]byte(nil), v...), nil
		}
	}
	return nil, db.ErrKeyNotFound
}

// SetMany stores every entry. A non-positive ttl never expires.
func (s *Store) SetMany(_ context.Context, entries []db.Entry, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[ttl]
	if !ok {
		c = expirable.NewLRU[string, []byte](0, nil, ttl)
		s.caches[ttl] = c
	}
	for _, e := range entries {
		for d, other := range s.caches {
			if d != ttl {
				other.Remove(e.Key)
			}
		}
		c.Add(e.Key, append([]byte(nil), e.Value...))
	}
	return nil
}

// Len returns the number of stored entries. Expired entries count until the
// cache purges them.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.caches {
		n += c.Len()
	}
	return n
}

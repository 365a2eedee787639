// Package indexcache holds scanned gallery indexes keyed by directory.
package indexcache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/fastload/internal/gallery"
)

// Policy decides which indexes stay cached.
type Policy interface {
	Get(dir string) (*gallery.Index, bool)
	Add(dir string, ix *gallery.Index)
	Remove(dir string)
	Len() int
}

// Cache is a concurrency-safe index cache with hit/miss accounting.
type Cache struct {
	mu      sync.Mutex
	policy  Policy
	lookups *prometheus.CounterVec
}

// New creates a cache over policy. A nil policy keeps every index.
// lookups is a counter vec with label "result" ("hit"/"miss"), may be nil.
func New(policy Policy, lookups *prometheus.CounterVec) *Cache {
	if policy == nil {
		policy = NewUnbounded()
	}
	return &Cache{policy: policy, lookups: lookups}
}

// Get returns the cached index for dir.
func (c *Cache) Get(dir string) (*gallery.Index, bool) {
	c.mu.Lock()
	ix, ok := c.policy.Get(dir)
	c.mu.Unlock()

	if ok {
		c.inc("hit")
	} else {
		c.inc("miss")
	}
	return ix, ok
}

// Put stores ix for dir, replacing any previous index.
func (c *Cache) Put(dir string, ix *gallery.Index) {
	c.mu.Lock()
	c.policy.Add(dir, ix)
	c.mu.Unlock()
}

// Invalidate drops the index for dir.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	c.policy.Remove(dir)
	c.mu.Unlock()
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.Len()
}

func (c *Cache) inc(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

type unbounded map[string]*gallery.Index

// NewUnbounded returns a policy that never evicts.
func NewUnbounded() Policy { return unbounded{} }

func (u unbounded) Get(dir string) (*gallery.Index, bool) {
	ix, ok := u[dir]
	return ix, ok
}

func (u unbounded) Add(dir string, ix *gallery.Index) { u[dir] = ix }
func (u unbounded) Remove(dir string)                 { delete(u, dir) }
func (u unbounded) Len() int                          { return len(u) }

type lruPolicy struct {
	c *lru.Cache[string, *gallery.Index]
}

// NewLRU returns a policy keeping the size most recently used indexes.
func NewLRU(size int) (Policy, error) {
	c, err := lru.New[string, *gallery.Index](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return lruPolicy{c: c}, nil
}

func (p lruPolicy) Get(dir string) (*gallery.Index, bool) { return p.c.Get(dir) }
func (p lruPolicy) Add(dir string, ix *gallery.Index)     { p.c.Add(dir, ix) }
func (p lruPolicy) Remove(dir string)                     { p.c.Remove(dir) }
func (p lruPolicy) Len() int                              { return p.c.Len() }

package indexcache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/fastload/internal/gallery"
)

func newLookups() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_index_cache_total",
	}, []string{"result"})
}

func TestCache_Unbounded(t *testing.T) {
	lookups := newLookups()
	c := New(nil, lookups)

	if _, ok := c.Get("/a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	ix := gallery.NewIndex()
	c.Put("/a", ix)
	got, ok := c.Get("/a")
	if !ok || got != ix {
		t.Fatalf("expected cached index, got %v %v", got, ok)
	}

	if v := testutil.ToFloat64(lookups.WithLabelValues("hit")); v != 1 {
		t.Errorf("hits = %v, want 1", v)
	}
	if v := testutil.ToFloat64(lookups.WithLabelValues("miss")); v != 1 {
		t.Errorf("misses = %v, want 1", v)
	}

	c.Invalidate("/a")
	if _, ok := c.Get("/a"); ok {
		t.Error("expected miss after Invalidate")
	}
}

func TestCache_KeysAreIndependent(t *testing.T) {
	c := New(NewUnbounded(), nil)
	a, b := gallery.NewIndex(), gallery.NewIndex()
	c.Put("/a", a)
	c.Put("/b", b)

	c.Put("/a", gallery.NewIndex())
	if got, _ := c.Get("/b"); got != b {
		t.Error("replacing /a must not touch /b")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCache_LRUEvicts(t *testing.T) {
	policy, err := NewLRU(2)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	c := New(policy, nil)

	c.Put("/a", gallery.NewIndex())
	c.Put("/b", gallery.NewIndex())
	c.Get("/a") // /b becomes least recently used
	c.Put("/c", gallery.NewIndex())

	if _, ok := c.Get("/b"); ok {
		t.Error("expected /b to be evicted")
	}
	if _, ok := c.Get("/a"); !ok {
		t.Error("expected /a to survive")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestNewLRU_InvalidSize(t *testing.T) {
	if _, err := NewLRU(0); err == nil {
		t.Fatal("expected error for size 0")
	}
}

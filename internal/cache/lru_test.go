package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache[T any](size int, ttl time.Duration) (*LRUCache[T], *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCacheEviction(t *testing.T) {
	c, _ := newTestCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1") // key2 becomes least recently used
	c.Set("key4", "value4")

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheTTLExpiration(t *testing.T) {
	c, clk := newTestCache[string](100, 50*time.Millisecond)

	c.Set("key1", "value1")
	if _, found := c.Get("key1"); !found {
		t.Error("key1 should exist immediately")
	}
	clk.advance(60 * time.Millisecond)
	if _, found := c.Get("key1"); found {
		t.Error("key1 should have expired")
	}
	if c.Size() != 0 {
		t.Error("expired entry should be removed on read")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c, clk := newTestCache[string](100, time.Minute)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	clk.advance(30 * time.Second)
	c.Set("key3", "value3")
	clk.advance(45 * time.Second)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("Expected 2 items cleaned, got %d", removed)
	}
	if _, found := c.Get("key3"); !found {
		t.Error("key3 should survive cleanup")
	}
}

func TestLRUCacheGetOrCreate(t *testing.T) {
	c, clk := newTestCache[*int](2, time.Minute)
	calls := 0
	create := func() *int { calls++; v := calls; return &v }

	a := c.GetOrCreate("s1", create)
	b := c.GetOrCreate("s1", create)
	if a != b || calls != 1 {
		t.Fatalf("expected shared entry, calls=%d", calls)
	}

	clk.advance(50 * time.Second)
	c.GetOrCreate("s1", create) // refreshes the TTL
	clk.advance(50 * time.Second)
	if got := c.GetOrCreate("s1", create); got != a {
		t.Fatal("entry should have been refreshed by access")
	}

	clk.advance(2 * time.Minute)
	if got := c.GetOrCreate("s1", create); got == a || calls != 2 {
		t.Fatalf("expired entry should be recreated, calls=%d", calls)
	}
}

func TestManagerSweep(t *testing.T) {
	a, clkA := newTestCache[string](10, time.Second)
	b, clkB := newTestCache[int](10, time.Second)
	a.Set("x", "1")
	b.Set("y", 2)
	b.Set("z", 3)
	clkA.advance(2 * time.Second)
	clkB.advance(2 * time.Second)

	m := NewManager()
	m.Register("a", a)
	m.Register("b", b)
	if n := m.Sweep(context.Background()); n != 3 {
		t.Fatalf("Sweep() = %d, want 3", n)
	}

	m.StartCleanup(context.Background(), time.Hour)
	m.Stop()
	m.Stop()
}

func BenchmarkLRUCache(b *testing.B) {
	c := NewLRUCache[string](1000, time.Hour)
	for i := 0; i < b.N; i++ {
		if i%10 == 0 {
			c.Set("bench-key", "v")
		} else {
			c.Get("bench-key")
		}
	}
}

package cow

import (
	"sync"
	"testing"
)

func TestIndexInsertReadRemove(t *testing.T) {
	ix := New[string, int](4)
	g := ix.Pin()
	defer g.Release()

	if _, ok := ix.Insert("a", 1); !ok {
		t.Fatal("expected fresh insert to succeed")
	}
	if _, ok := ix.Insert("a", 2); ok {
		t.Fatal("expected duplicate insert to report conflict")
	}
	if v, ok := ix.Read(g, "a"); !ok || v != 1 {
		t.Fatalf("got %v,%v", v, ok)
	}
	if v, ok := ix.Remove("a"); !ok || v != 1 {
		t.Fatalf("remove: got %v,%v", v, ok)
	}
	if _, ok := ix.Read(g, "a"); ok {
		t.Fatal("expected a to be gone")
	}
}

func TestIndexUpsert(t *testing.T) {
	ix := New[string, int](4)
	v, existed := ix.Upsert("k", func() int { return 1 }, func(v int) int { return v + 1 })
	if existed || v != 1 {
		t.Fatalf("got %v,%v", v, existed)
	}
	v, existed = ix.Upsert("k", func() int { return -1 }, func(v int) int { return v + 1 })
	if !existed || v != 2 {
		t.Fatalf("got %v,%v", v, existed)
	}
}

func TestIndexGrowPreservesEntries(t *testing.T) {
	ix := New[int, int](2)
	const n = 5000
	for i := 0; i < n; i++ {
		if _, ok := ix.Insert(i, i*3); !ok {
			t.Fatalf("insert %d failed", i)
		}
	}
	if ix.Len() != n {
		t.Fatalf("expected %d entries, got %d", n, ix.Len())
	}
	g := ix.Pin()
	defer g.Release()
	for i := 0; i < n; i++ {
		v, ok := ix.Read(g, i)
		if !ok || v != i*3 {
			t.Fatalf("key %d: got %v,%v", i, v, ok)
		}
	}
}

func TestIndexIterVisitsEverything(t *testing.T) {
	ix := New[int, int](4)
	const n = 200
	for i := 0; i < n; i++ {
		ix.Insert(i, i)
	}
	g := ix.Pin()
	defer g.Release()

	seen := make(map[int]bool)
	ix.Iter(g, func(k, v int) bool {
		if k != v {
			t.Fatalf("corrupted entry %d -> %d", k, v)
		}
		seen[k] = true
		return true
	})
	if len(seen) != n {
		t.Fatalf("visited %d of %d entries", len(seen), n)
	}
}

// TestIndexReadDuringWrites is the headline claim of C6: a reader
// holding one guard across many Read calls must never block on, or be
// blocked by, concurrent writers, including ones that trigger a grow.
func TestIndexReadDuringWrites(t *testing.T) {
	ix := New[int, int](2)
	const n = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			ix.Insert(i, i)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		g := ix.Pin()
		defer g.Release()
		for i := 0; i < n; i++ {
			ix.Read(g, i) // present or not, must never panic or deadlock
		}
	}()

	wg.Wait()
	if ix.Len() != n {
		t.Fatalf("expected %d entries, got %d", n, ix.Len())
	}
}

func TestIndexIterStopsEarly(t *testing.T) {
	ix := New[int, int](4)
	for i := 0; i < 100; i++ {
		ix.Insert(i, i)
	}
	g := ix.Pin()
	defer g.Release()

	count := 0
	ix.Iter(g, func(k, v int) bool {
		count++
		return count < 10
	})
	if count != 10 {
		t.Fatalf("expected early stop at 10, got %d", count)
	}
}

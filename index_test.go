package scc

import "testing"

func TestIndexBasic(t *testing.T) {
	ix := NewIndex[string, int](4)
	g := ix.Pin()
	defer g.Release()

	if _, err := ix.Insert("a", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Insert("a", 2); err == nil {
		t.Fatal("expected duplicate key error")
	}
	if v, ok := ix.Read(g, "a"); !ok || v != 1 {
		t.Fatalf("got %v,%v", v, ok)
	}

	var seen []string
	ix.Iter(g, func(k string, v int) bool {
		seen = append(seen, k)
		return true
	})
	if len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("unexpected iter result: %v", seen)
	}

	if v, ok := ix.Remove("a"); !ok || v != 1 {
		t.Fatalf("remove: got %v,%v", v, ok)
	}
}

func TestTreeIndexRange(t *testing.T) {
	ti := NewTreeIndex[int, string](func(a, b int) bool { return a < b }, 0)
	for i := 0; i < 50; i++ {
		if _, err := ti.Insert(i, "v"); err != nil {
			t.Fatal(err)
		}
	}
	g := ti.Pin()
	defer g.Release()

	count := 0
	ti.Range(g, 10, func(k int, v string) bool {
		if k < 10 {
			t.Fatalf("range returned key below from: %d", k)
		}
		count++
		return true
	})
	if count != 40 {
		t.Fatalf("expected 40 entries from key 10, got %d", count)
	}
}

package scc

import (
	"sync"
	"testing"
)

func TestMapBasic(t *testing.T) {
	m := NewMap[string, int](8)
	if _, err := m.Insert("a", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Insert("a", 2); err == nil {
		t.Fatal("expected duplicate key error")
	}
	if v, ok := m.Read("a", func(v int) int { return v }); !ok || v != 1 {
		t.Fatalf("got %v,%v", v, ok)
	}
	if v, ok := m.Update("a", func(v int) int { return v + 10 }); !ok || v != 11 {
		t.Fatalf("update: got %v,%v", v, ok)
	}
	if v, ok := m.Remove("a"); !ok || v != 11 {
		t.Fatalf("remove: got %v,%v", v, ok)
	}
	if !m.IsEmpty() {
		t.Fatal("expected empty map")
	}
}

func TestMapPresizeOption(t *testing.T) {
	m := NewMap[int, int](0, WithPresize[int, int](1000))
	if m.Capacity() < 1000 {
		t.Fatalf("expected capacity >= 1000, got %d", m.Capacity())
	}
}

func TestMapConcurrentWorkers(t *testing.T) {
	m := NewMap[int, int](16)
	var wg sync.WaitGroup
	const workers, per = 8, 2000
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			base := w * per
			for i := 0; i < per; i++ {
				if _, err := m.Insert(base+i, base+i); err != nil {
					t.Errorf("insert failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	if m.Len() != workers*per {
		t.Fatalf("expected %d entries, got %d", workers*per, m.Len())
	}
}

func TestSetBasic(t *testing.T) {
	s := NewSet[string](8)
	if !s.Insert("x") {
		t.Fatal("expected fresh insert to succeed")
	}
	if s.Insert("x") {
		t.Fatal("expected duplicate insert to fail")
	}
	if !s.Contains("x") {
		t.Fatal("expected x to be present")
	}
	if !s.Remove("x") {
		t.Fatal("expected remove to succeed")
	}
	if s.Contains("x") {
		t.Fatal("expected x to be gone")
	}
}

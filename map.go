package scc

import "github.com/arlenx/scc/internal/cellarray"

// Map is a mutating, concurrent key-value container (C5). It favors
// throughput under contended mixed read/write workloads: every cell
// (a segment of the table) owns its own lock, and a resize is a single
// cooperative migration any operation touching an affected cell helps
// drive forward.
type Map[K comparable, V any] struct {
	arr *cellarray.Array[K, V]
}

type mapConfig[K comparable, V any] struct {
	presize int
	copts   []cellarray.Option[K, V]
}

// MapOption configures a Map at construction time.
type MapOption[K comparable, V any] func(*mapConfig[K, V])

// WithPresize reserves room for at least n entries up front, as an
// alternative to passing capacity directly to NewMap.
func WithPresize[K comparable, V any](n int) MapOption[K, V] {
	return func(c *mapConfig[K, V]) { c.presize = n }
}

// WithHasher overrides the default key hasher.
func WithHasher[K comparable, V any](h Hasher[K]) MapOption[K, V] {
	return func(c *mapConfig[K, V]) {
		c.copts = append(c.copts, cellarray.WithHasher[K, V](cellarray.Hasher[K](h)))
	}
}

// WithEqual overrides the default (==) key comparison.
func WithEqual[K comparable, V any](eq func(K, K) bool) MapOption[K, V] {
	return func(c *mapConfig[K, V]) {
		c.copts = append(c.copts, cellarray.WithEqual[K, V](eq))
	}
}

// WithShrinkEnabled toggles whether the Map requests a downsize once
// occupancy falls under the low watermark. Off by default.
func WithShrinkEnabled[K comparable, V any](enabled bool) MapOption[K, V] {
	return func(c *mapConfig[K, V]) {
		c.copts = append(c.copts, cellarray.WithShrinkEnabled[K, V](enabled))
	}
}

// NewMap constructs a Map presized for at least capacity entries.
func NewMap[K comparable, V any](capacity int, opts ...MapOption[K, V]) *Map[K, V] {
	cfg := &mapConfig[K, V]{presize: capacity}
	for _, o := range opts {
		o(cfg)
	}
	if capacity > cfg.presize {
		cfg.presize = capacity
	}
	return &Map[K, V]{arr: cellarray.New[K, V](cfg.presize, cfg.copts...)}
}

// WithCapacity is an alias for NewMap, matching the teacher's
// WithCapacity naming for presized constructors.
func WithCapacity[K comparable, V any](capacity int, opts ...MapOption[K, V]) *Map[K, V] {
	return NewMap[K, V](capacity, opts...)
}

// Insert adds key with value if absent. On conflict it returns the
// existing value and a *DuplicateKeyError carrying the rejected value.
func (m *Map[K, V]) Insert(key K, value V) (V, error) {
	v, err := m.arr.Insert(key, value)
	if err == nil {
		return v, nil
	}
	if dup, ok := err.(*cellarray.DuplicateKeyError[V]); ok {
		return v, &DuplicateKeyError[V]{Value: dup.Value}
	}
	return v, err
}

// Read looks up key and, if present, applies proj to its value under
// the owning cell's read lock.
func (m *Map[K, V]) Read(key K, proj func(V) V) (V, bool) { return m.arr.Read(key, proj) }

// Update applies modify to key's current value in place if present.
func (m *Map[K, V]) Update(key K, modify func(V) V) (V, bool) { return m.arr.Update(key, modify) }

// Upsert inserts make() if key is absent, or replaces the existing
// value with modify(existing) if present.
func (m *Map[K, V]) Upsert(key K, make func() V, modify func(V) V) (V, bool) {
	return m.arr.Upsert(key, make, modify)
}

// Remove deletes key if present, returning its value.
func (m *Map[K, V]) Remove(key K) (V, bool) { return m.arr.Remove(key) }

// ForEach visits every entry present at some point during the call.
func (m *Map[K, V]) ForEach(fn func(key K, value V) bool) { m.arr.ForEach(fn) }

// Retain keeps only entries for which keep returns true.
func (m *Map[K, V]) Retain(keep func(key K, value V) bool) { m.arr.Retain(keep) }

// Capacity reports how many entries the current table generation can
// hold inline before any cell spills to overflow.
func (m *Map[K, V]) Capacity() int { return m.arr.Capacity() }

// Len reports the number of entries currently stored.
func (m *Map[K, V]) Len() int { return m.arr.Len() }

// IsEmpty reports whether Len() == 0.
func (m *Map[K, V]) IsEmpty() bool { return m.arr.IsEmpty() }

// Clear removes every entry.
func (m *Map[K, V]) Clear() { m.arr.Clear() }

package scc

import (
	"github.com/arlenx/scc/internal/cow"
	"github.com/arlenx/scc/internal/ebr"
)

// Index is a read-optimized, copy-on-write keyed container (C6). Read
// and Iter never take a lock, including during a concurrent write or
// resize — grounded directly on the teacher's lock-free
// MapOf.Load/RangeEntry traversal, generalized from a per-entry pointer
// swap to a whole-bucket copy-on-write replace.
type Index[K comparable, V any] struct {
	ix *cow.Index[K, V]
}

type indexConfig[K comparable, V any] struct {
	presize int
	copts   []cow.Option[K, V]
}

// IndexOption configures an Index at construction time.
type IndexOption[K comparable, V any] func(*indexConfig[K, V])

// WithIndexPresize reserves room for at least n entries up front.
func WithIndexPresize[K comparable, V any](n int) IndexOption[K, V] {
	return func(c *indexConfig[K, V]) { c.presize = n }
}

// WithIndexHasher overrides the default key hasher.
func WithIndexHasher[K comparable, V any](h Hasher[K]) IndexOption[K, V] {
	return func(c *indexConfig[K, V]) {
		c.copts = append(c.copts, cow.WithHasher[K, V](cow.Hasher[K](h)))
	}
}

// WithIndexEqual overrides the default (==) key comparison.
func WithIndexEqual[K comparable, V any](eq func(K, K) bool) IndexOption[K, V] {
	return func(c *indexConfig[K, V]) {
		c.copts = append(c.copts, cow.WithEqual[K, V](eq))
	}
}

// NewIndex constructs an Index presized for at least capacity entries.
func NewIndex[K comparable, V any](capacity int, opts ...IndexOption[K, V]) *Index[K, V] {
	cfg := &indexConfig[K, V]{presize: capacity}
	for _, o := range opts {
		o(cfg)
	}
	if capacity > cfg.presize {
		cfg.presize = capacity
	}
	return &Index[K, V]{ix: cow.New[K, V](cfg.presize, cfg.copts...)}
}

// Pin returns a barrier token scoping a Read or an Iter scan against
// the table generation live at the time of the call.
func (ix *Index[K, V]) Pin() *ebr.Guard { return ix.ix.Pin() }

// Read looks up key under guard.
func (ix *Index[K, V]) Read(guard *ebr.Guard, key K) (V, bool) { return ix.ix.Read(guard, key) }

// Insert adds key with value if absent.
func (ix *Index[K, V]) Insert(key K, value V) (V, error) {
	v, ok := ix.ix.Insert(key, value)
	if ok {
		return v, nil
	}
	return v, &DuplicateKeyError[V]{Value: value}
}

// Upsert inserts make() if key is absent, or replaces it with
// modify(existing) if present.
func (ix *Index[K, V]) Upsert(key K, make func() V, modify func(V) V) (V, bool) {
	return ix.ix.Upsert(key, make, modify)
}

// Remove deletes key if present, returning its value.
func (ix *Index[K, V]) Remove(key K) (V, bool) { return ix.ix.Remove(key) }

// Iter walks every entry present at some point during the call under a
// single pinned guard, stopping early if fn returns false.
func (ix *Index[K, V]) Iter(guard *ebr.Guard, fn func(key K, value V) bool) {
	ix.ix.Iter(guard, fn)
}

// Len reports the number of entries currently stored.
func (ix *Index[K, V]) Len() int { return ix.ix.Len() }

// IsEmpty reports whether Len() == 0.
func (ix *Index[K, V]) IsEmpty() bool { return ix.ix.IsEmpty() }

// Capacity reports the current table's bucket count.
func (ix *Index[K, V]) Capacity() int { return ix.ix.Capacity() }

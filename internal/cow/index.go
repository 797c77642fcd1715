// Package cow implements C6's read-optimized container: a bucket array
// published via copy-on-write, so Read/Iter never take a lock at all —
// every write builds a replacement bucket (or, on resize, a whole
// replacement table) and swaps it in with a single atomic store.
package cow

import (
	"sync"
	"sync/atomic"

	"github.com/arlenx/scc/internal/ebr"
)

// growThreshold is the bucket depth beyond which a write to that bucket
// triggers a rebuild of the whole table. A
// full rehash is the cost Index pays for read-side locklessness; unlike
// cellarray's incremental helper-based migration, this is the
// idiomatic trade for a structure whose writers are expected to be rare
// relative to readers (§4.6).
const growThreshold = 8

// Hasher computes the hash of a key.
type Hasher[K comparable] func(key K) uint64

// Index is a read-optimized, copy-on-write keyed container. Reads never
// block, including during a concurrent write or resize.
type Index[K comparable, V any] struct {
	domain *ebr.Domain
	table  atomic.Pointer[Table[K, V]]

	// writeMu serializes structural writers only; it is never taken by
	// Read or Iter.
	writeMu sync.Mutex

	hasher Hasher[K]
	eq     func(K, K) bool
	size   atomic.Int64
}

// Option configures an Index at construction time.
type Option[K comparable, V any] func(*Index[K, V])

func WithHasher[K comparable, V any](h Hasher[K]) Option[K, V] {
	return func(ix *Index[K, V]) { ix.hasher = h }
}

func WithEqual[K comparable, V any](eq func(K, K) bool) Option[K, V] {
	return func(ix *Index[K, V]) { ix.eq = eq }
}

func WithDomain[K comparable, V any](d *ebr.Domain) Option[K, V] {
	return func(ix *Index[K, V]) { ix.domain = d }
}

// New constructs an Index presized for at least capacity entries.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) *Index[K, V] {
	ix := &Index[K, V]{
		hasher: hashAny[K],
		eq:     func(x, y K) bool { return x == y },
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.domain == nil {
		ix.domain = ebr.New()
	}
	buckets := capacity / growThreshold
	if buckets < 1 {
		buckets = 1
	}
	ix.table.Store(newTable[K, V](buckets))
	return ix
}

// Pin returns a barrier token scoping a read (or a sequence of reads,
// via Iter) against the table generation live at the time of the call.
func (ix *Index[K, V]) Pin() *ebr.Guard { return ix.domain.Pin() }

// Read looks up key. guard must come from Pin (or from an in-progress
// Iter) and is only consulted to keep the API shape consistent with the
// rest of this module's barrier discipline — Go's garbage collector,
// not the guard, is what actually keeps the bucket alive here (see
// DESIGN.md).
func (ix *Index[K, V]) Read(guard *ebr.Guard, key K) (V, bool) {
	_ = guard
	tbl := ix.table.Load()
	h := ix.hasher(key)
	b := tbl.bucketFor(h).Load()
	return b.find(key, ix.eq)
}

// Insert adds key with value if absent. On conflict it returns the
// existing value and false.
func (ix *Index[K, V]) Insert(key K, value V) (V, bool) {
	h := ix.hasher(key)

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	tbl := ix.table.Load()
	slot := tbl.bucketFor(h)
	old := slot.Load()
	nb, existing, conflict := old.withInserted(key, value, ix.eq)
	if conflict {
		return existing, false
	}
	slot.Store(nb)
	ix.domain.Retire(old, func() {})
	ix.size.Add(1)

	if nb.len() > growThreshold {
		ix.growLocked()
	}
	return value, true
}

// Upsert inserts make() if key is absent, or replaces it with
// modify(existing) if present.
func (ix *Index[K, V]) Upsert(key K, make func() V, modify func(V) V) (V, bool) {
	h := ix.hasher(key)

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	tbl := ix.table.Load()
	slot := tbl.bucketFor(h)
	old := slot.Load()

	if existing, ok := old.find(key, ix.eq); ok {
		value := modify(existing)
		nb, _ := old.withUpserted(key, value, ix.eq)
		slot.Store(nb)
		ix.domain.Retire(old, func() {})
		return value, true
	}

	value := make()
	nb, _ := old.withUpserted(key, value, ix.eq)
	slot.Store(nb)
	ix.domain.Retire(old, func() {})
	ix.size.Add(1)
	if nb.len() > growThreshold {
		ix.growLocked()
	}
	return value, false
}

// Remove deletes key if present, returning its value.
func (ix *Index[K, V]) Remove(key K) (V, bool) {
	h := ix.hasher(key)

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	tbl := ix.table.Load()
	slot := tbl.bucketFor(h)
	old := slot.Load()
	nb, removed, ok := old.withRemoved(key, ix.eq)
	if !ok {
		var zero V
		return zero, false
	}
	slot.Store(nb)
	ix.domain.Retire(old, func() {})
	ix.size.Add(-1)
	return removed, true
}

// Iter walks every entry present at some point during the call, under
// a single pinned guard, stopping early if fn returns false. Unlike
// Map's ForEach, this is meant for long-lived scans: it never blocks a
// concurrent writer, and a writer never blocks it.
func (ix *Index[K, V]) Iter(guard *ebr.Guard, fn func(key K, value V) bool) {
	_ = guard
	tbl := ix.table.Load()
	for i := range tbl.buckets {
		b := tbl.buckets[i].Load()
		if b == nil {
			continue
		}
		for _, e := range b.entries {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}

// Len reports the number of entries currently stored.
func (ix *Index[K, V]) Len() int { return int(ix.size.Load()) }

// IsEmpty reports whether Len() == 0.
func (ix *Index[K, V]) IsEmpty() bool { return ix.Len() == 0 }

// Capacity reports the current table's bucket count.
func (ix *Index[K, V]) Capacity() int { return ix.table.Load().Len() }

// growLocked rebuilds the table at double its current bucket count and
// publishes it with one atomic swap. Caller must hold writeMu.
func (ix *Index[K, V]) growLocked() {
	old := ix.table.Load()
	next := newTable[K, V](old.Len() * 2)
	for i := range old.buckets {
		b := old.buckets[i].Load()
		if b == nil {
			continue
		}
		for _, e := range b.entries {
			h := ix.hasher(e.key)
			slot := next.bucketFor(h)
			nb, _ := slot.Load().withUpserted(e.key, e.value, ix.eq)
			slot.Store(nb)
		}
	}
	ix.table.Store(next)
	ix.domain.Retire(old, func() {})
}

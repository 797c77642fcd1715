// Package cellarray implements C4, the segmented/resizable cell-array
// hash table that backs scc.Map. It favors throughput under mixed
// read/write contention over raw single-threaded speed: every cell owns
// its own lock, so operations on distinct cells never contend, and a
// resize is a single cooperative migration that any caller touching an
// affected cell helps drive forward rather than blocking on.
package cellarray

import (
	"sync/atomic"

	"github.com/arlenx/scc/internal/ebr"
)

// Target load factors that trigger a resize request, per a cell's own
// inline occupancy (§4.4). Growing and shrinking are symmetric but not
// mirror thresholds, to avoid thrashing at the boundary.
const (
	TargetLoadHigh = 0.875
	TargetLoadLow  = 0.125
)

// Hasher computes the hash of a key. It must be deterministic for equal
// keys for the lifetime of an Array.
type Hasher[K comparable] func(key K) uint64

// Array is the segmented cell-array hash table. It is safe for
// concurrent use by multiple goroutines.
type Array[K comparable, V any] struct {
	domain *ebr.Domain

	table atomic.Pointer[Table[K, V]]
	mig   atomic.Pointer[migration[K, V]]

	hasher Hasher[K]
	eq     func(K, K) bool

	size atomic.Int64

	minCells      int
	shrinkEnabled bool
}

// Option configures an Array at construction time.
type Option[K comparable, V any] func(*Array[K, V])

// WithHasher overrides the default key hasher.
func WithHasher[K comparable, V any](h Hasher[K]) Option[K, V] {
	return func(a *Array[K, V]) { a.hasher = h }
}

// WithEqual overrides the default (==) key comparison, needed for
// incomparable-by-== key shapes such as slices wrapped in an interface.
func WithEqual[K comparable, V any](eq func(K, K) bool) Option[K, V] {
	return func(a *Array[K, V]) { a.eq = eq }
}

// WithShrinkEnabled toggles whether the array requests a downsize once
// occupancy falls below TargetLoadLow. Disabled by default: most callers
// size once and keep writing, and a shrink that immediately grows back
// just burns a migration.
func WithShrinkEnabled[K comparable, V any](enabled bool) Option[K, V] {
	return func(a *Array[K, V]) { a.shrinkEnabled = enabled }
}

// WithDomain attaches an explicit reclamation domain instead of the
// package-default one, letting tests observe retirement ordering without
// a process-wide singleton.
func WithDomain[K comparable, V any](d *ebr.Domain) Option[K, V] {
	return func(a *Array[K, V]) { a.domain = d }
}

// New constructs an Array presized for at least capacity entries.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) *Array[K, V] {
	a := &Array[K, V]{
		hasher: defaultHasher[K],
		eq:     func(x, y K) bool { return x == y },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.domain == nil {
		a.domain = ebr.New()
	}
	cells := (capacity + InlineCapacity - 1) / InlineCapacity
	if cells < 1 {
		cells = 1
	}
	if a.minCells < 1 {
		a.minCells = 1
	}
	a.table.Store(newTable[K, V](cells))
	return a
}

func defaultHasher[K comparable](key K) uint64 {
	return hashAny(key)
}

// Insert adds key with value if key is not already present. On
// conflict it returns the existing value and a *DuplicateKeyError
// carrying the rejected value.
func (a *Array[K, V]) Insert(key K, value V) (V, error) {
	h := a.hasher(key)
	fp := fingerprint(h)

	for {
		tbl := a.table.Load()
		c := tbl.cellFor(h)

		c.mu.Lock()
		if c.killed {
			c.mu.Unlock()
			a.helpUntilTableAdvances(tbl)
			continue
		}
		if existing := c.findLocked(fp, key, a.eq); existing != nil {
			got := existing.Value
			c.mu.Unlock()
			return got, &DuplicateKeyError[V]{Value: value}
		}
		c.insertLocked(fp, &Entry[K, V]{Key: key, Value: value})
		count := c.count
		c.mu.Unlock()

		a.size.Add(1)
		if float64(count) > InlineCapacity*TargetLoadHigh {
			a.maybeGrow(tbl)
		}
		return value, nil
	}
}

// Read looks up key and, if present, applies proj to its value under
// the cell's read lock, returning proj's result.
func (a *Array[K, V]) Read(key K, proj func(V) V) (V, bool) {
	h := a.hasher(key)
	fp := fingerprint(h)

	for {
		tbl := a.table.Load()
		c := tbl.cellFor(h)

		c.mu.RLock()
		if c.killed {
			c.mu.RUnlock()
			a.helpUntilTableAdvances(tbl)
			continue
		}
		e := c.findLocked(fp, key, a.eq)
		if e == nil {
			c.mu.RUnlock()
			var zero V
			return zero, false
		}
		result := proj(e.Value)
		c.mu.RUnlock()
		return result, true
	}
}

// Update applies modify to key's current value in place if key is
// present, returning the updated value.
func (a *Array[K, V]) Update(key K, modify func(V) V) (V, bool) {
	h := a.hasher(key)
	fp := fingerprint(h)

	for {
		tbl := a.table.Load()
		c := tbl.cellFor(h)

		c.mu.Lock()
		if c.killed {
			c.mu.Unlock()
			a.helpUntilTableAdvances(tbl)
			continue
		}
		e := c.findLocked(fp, key, a.eq)
		if e == nil {
			c.mu.Unlock()
			var zero V
			return zero, false
		}
		e.Value = modify(e.Value)
		got := e.Value
		c.mu.Unlock()
		return got, true
	}
}

// Upsert inserts make() if key is absent, or replaces the existing
// value with modify(existing) if present, returning the resulting value
// and whether the key already existed.
func (a *Array[K, V]) Upsert(key K, make func() V, modify func(V) V) (V, bool) {
	h := a.hasher(key)
	fp := fingerprint(h)

	for {
		tbl := a.table.Load()
		c := tbl.cellFor(h)

		c.mu.Lock()
		if c.killed {
			c.mu.Unlock()
			a.helpUntilTableAdvances(tbl)
			continue
		}
		if e := c.findLocked(fp, key, a.eq); e != nil {
			e.Value = modify(e.Value)
			got := e.Value
			c.mu.Unlock()
			return got, true
		}
		value := make()
		c.insertLocked(fp, &Entry[K, V]{Key: key, Value: value})
		count := c.count
		c.mu.Unlock()

		a.size.Add(1)
		if float64(count) > InlineCapacity*TargetLoadHigh {
			a.maybeGrow(tbl)
		}
		return value, false
	}
}

// Remove deletes key if present, returning its value.
func (a *Array[K, V]) Remove(key K) (V, bool) {
	h := a.hasher(key)
	fp := fingerprint(h)

	for {
		tbl := a.table.Load()
		c := tbl.cellFor(h)

		c.mu.Lock()
		if c.killed {
			c.mu.Unlock()
			a.helpUntilTableAdvances(tbl)
			continue
		}
		got, ok := c.removeLocked(fp, key, a.eq)
		count := c.count
		c.mu.Unlock()
		if !ok {
			var zero V
			return zero, false
		}

		a.size.Add(-1)
		if a.shrinkEnabled && float64(count) < InlineCapacity*TargetLoadLow {
			a.maybeShrink(tbl)
		}
		return got.Value, true
	}
}

// ForEach visits every entry present at some point during the call.
// Stops early if fn returns false. A concurrent resize may cause an
// entry to be visited on whichever table generation holds it at the
// moment ForEach reaches its cell; entries are never skipped or
// duplicated by the scan itself, only by concurrent Insert/Remove
// racing with it (§4.4's "no isolation" guarantee).
func (a *Array[K, V]) ForEach(fn func(key K, value V) bool) {
	tbl := a.table.Load()
	for i := range tbl.cells {
		c := &tbl.cells[i]
		c.mu.RLock()
		cont := c.forEachLocked(func(e *Entry[K, V]) bool {
			return fn(e.Key, e.Value)
		})
		c.mu.RUnlock()
		if !cont {
			return
		}
	}
}

// Retain keeps only entries for which keep returns true, removing the
// rest.
func (a *Array[K, V]) Retain(keep func(key K, value V) bool) {
	tbl := a.table.Load()
	for i := range tbl.cells {
		c := &tbl.cells[i]
		c.mu.Lock()
		var drop []K
		c.forEachLocked(func(e *Entry[K, V]) bool {
			if !keep(e.Key, e.Value) {
				drop = append(drop, e.Key)
			}
			return true
		})
		for _, k := range drop {
			h := a.hasher(k)
			if _, ok := c.removeLocked(fingerprint(h), k, a.eq); ok {
				a.size.Add(-1)
			}
		}
		c.mu.Unlock()
	}
}

// Clear removes every entry, leaving the current table sizing in place.
func (a *Array[K, V]) Clear() {
	a.Retain(func(K, V) bool { return false })
}

// Len reports the number of entries currently stored.
func (a *Array[K, V]) Len() int { return int(a.size.Load()) }

// IsEmpty reports whether Len() == 0.
func (a *Array[K, V]) IsEmpty() bool { return a.Len() == 0 }

// Capacity reports the number of entries the current table generation
// can hold inline before any cell spills to overflow.
func (a *Array[K, V]) Capacity() int {
	return a.table.Load().Len() * InlineCapacity
}

func (a *Array[K, V]) maybeGrow(tbl *Table[K, V]) {
	if a.mig.Load() != nil {
		return
	}
	mig := a.tryStartMigration(tbl, tbl.Len()*2)
	a.helpMigrate(mig)
}

func (a *Array[K, V]) maybeShrink(tbl *Table[K, V]) {
	if a.mig.Load() != nil {
		return
	}
	newLen := tbl.Len() / 2
	if newLen < a.minCells {
		return
	}
	mig := a.tryStartMigration(tbl, newLen)
	a.helpMigrate(mig)
}

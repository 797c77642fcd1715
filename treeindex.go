package scc

import (
	"github.com/arlenx/scc/internal/btree"
	"github.com/arlenx/scc/internal/ebr"
)

// TreeIndex is an ordered, concurrent B+ tree index (C7, essentials
// only). It supports ordered range scans, which Map and Index
// deliberately do not (§12 Non-goals: no ordered iteration over
// Map/Set — TreeIndex is the container that exists specifically to
// offer it).
type TreeIndex[K any, V any] struct {
	t *btree.TreeIndex[K, V]
}

// NewTreeIndex constructs a TreeIndex ordered by less. capacity is an
// advisory arena-sizing hint only.
func NewTreeIndex[K any, V any](less func(K, K) bool, capacity int) *TreeIndex[K, V] {
	return &TreeIndex[K, V]{t: btree.New[K, V](less, capacity)}
}

// Pin returns a barrier token scoping a Read or a Range scan.
func (t *TreeIndex[K, V]) Pin() *ebr.Guard { return t.t.Pin() }

// Insert adds key with value if absent.
func (t *TreeIndex[K, V]) Insert(key K, value V) (V, error) {
	v, err := t.t.Insert(key, value)
	if err == nil {
		return v, nil
	}
	if dup, ok := err.(*btree.DuplicateKeyError[V]); ok {
		return v, &DuplicateKeyError[V]{Value: dup.Value}
	}
	return v, err
}

// Read looks up key under guard.
func (t *TreeIndex[K, V]) Read(guard *ebr.Guard, key K) (V, bool) { return t.t.Read(guard, key) }

// Remove deletes key if present. Underfull nodes are left in place
// (no rebalance-on-delete; see DESIGN.md).
func (t *TreeIndex[K, V]) Remove(key K) (V, bool) { return t.t.Remove(key) }

// Range visits entries in ascending order starting at the first key
// not less than from, stopping early if fn returns false.
func (t *TreeIndex[K, V]) Range(guard *ebr.Guard, from K, fn func(key K, value V) bool) {
	t.t.Range(guard, from, fn)
}

// Len reports the number of entries currently stored.
func (t *TreeIndex[K, V]) Len() int { return t.t.Len() }

// IsEmpty reports whether Len() == 0.
func (t *TreeIndex[K, V]) IsEmpty() bool { return t.t.IsEmpty() }

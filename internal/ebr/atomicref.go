package ebr

import "sync/atomic"

// tagged bundles an OwnedRef with its two user-defined tag bits so that
// both fields change atomically together under a single pointer swap.
// Packing the tag into the low bits of the pointer word (as a
// manual-memory implementation would) isn't necessary in Go — the
// pointer itself is never moved by the collector, so an immutable
// {owned, tag} node swapped atomically gives the identical guarantee
// (the pair changes together, or not at all) without unsafe bit tricks.
type tagged[T any] struct {
	owned OwnedRef[T]
	tag   uint8
}

// AtomicRef is an atomically-updatable slot holding either nothing or an
// owning reference to a heap-resident T, plus two tag bits that
// participate in every compare-and-swap.
type AtomicRef[T any] struct {
	ptr atomic.Pointer[tagged[T]]
}

// Load performs a lock-free read, returning a LocalPtr bound to guard.
// The returned LocalPtr is valid only while guard remains open.
func (r *AtomicRef[T]) Load(guard *Guard) LocalPtr[T] {
	t := r.ptr.Load()
	if t == nil {
		return LocalPtr[T]{guard: guard}
	}
	return LocalPtr[T]{guard: guard, value: t.owned.Get(), owned: t.owned, tag: t.tag, present: true}
}

// LoadTag reads just the tag bits, with no dereference of the pointed-to
// value and no Guard requirement — safe to call at any time, including
// from delete_self-style operations that never touch the payload.
func (r *AtomicRef[T]) LoadTag() uint8 {
	t := r.ptr.Load()
	if t == nil {
		return 0
	}
	return t.tag
}

// Store publishes a new owner and tag. Any previously held owner is
// retired (never destroyed synchronously), so a concurrent LocalPtr
// produced by a still-open Guard remains valid.
func (r *AtomicRef[T]) Store(owned OwnedRef[T], tag uint8) {
	next := &tagged[T]{owned: owned, tag: tag}
	prev := r.ptr.Swap(next)
	if prev != nil {
		prev.owned.Release()
	}
}

// CompareExchangeResult is the outcome of AtomicRef.CompareExchange.
type CompareExchangeResult[T any] struct {
	// Prior is the owner that was displaced on success; the zero value
	// when the slot was empty.
	Prior OwnedRef[T]
	// Observed is the current content when the CAS failed.
	Observed LocalPtr[T]
	OK       bool
}

// CompareExchange atomically replaces the slot's content with (newOwned,
// newTag) if its current content matches expected (compared by the
// OwnedRef and tag expected captured when expected was produced). The
// full 2-bit tag participates in the comparison, per §4.2.
func (r *AtomicRef[T]) CompareExchange(expected LocalPtr[T], newOwned OwnedRef[T], newTag uint8) CompareExchangeResult[T] {
	cur := r.ptr.Load()
	if !sameSlot(cur, expected) {
		return CompareExchangeResult[T]{Observed: loadObserved(cur, expected.guard)}
	}
	next := &tagged[T]{owned: newOwned, tag: newTag}
	if !r.ptr.CompareAndSwap(cur, next) {
		fresh := r.ptr.Load()
		return CompareExchangeResult[T]{Observed: loadObserved(fresh, expected.guard)}
	}
	var prior OwnedRef[T]
	if cur != nil {
		prior = cur.owned
	}
	return CompareExchangeResult[T]{Prior: prior, OK: true}
}

func sameSlot[T any](cur *tagged[T], expected LocalPtr[T]) bool {
	if cur == nil {
		return !expected.present
	}
	return expected.present && cur.owned.Get() == expected.value && cur.tag == expected.tag
}

func loadObserved[T any](t *tagged[T], guard *Guard) LocalPtr[T] {
	if t == nil {
		return LocalPtr[T]{guard: guard}
	}
	return LocalPtr[T]{guard: guard, value: t.owned.Get(), owned: t.owned, tag: t.tag, present: true}
}

// UpdateTagIf atomically replaces the tag alone, leaving the owner
// untouched, provided pred accepts the current tag. Reports whether the
// update happened.
func (r *AtomicRef[T]) UpdateTagIf(newTag uint8, pred func(currentTag uint8) bool) bool {
	for {
		cur := r.ptr.Load()
		var curTag uint8
		if cur != nil {
			curTag = cur.tag
		}
		if !pred(curTag) {
			return false
		}
		var next *tagged[T]
		if cur == nil {
			next = &tagged[T]{tag: newTag}
		} else {
			next = &tagged[T]{owned: cur.owned, tag: newTag}
		}
		if r.ptr.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// TryIntoOwned converts the slot's current owner into a uniquely-owned
// handle, clearing the slot. Fails unless the reference count is exactly
// 1 (no other holder — including no other AtomicRef clone — exists).
func (r *AtomicRef[T]) TryIntoOwned() (OwnedRef[T], bool) {
	cur := r.ptr.Load()
	if cur == nil {
		return OwnedRef[T]{}, false
	}
	owned, ok := cur.owned.tryIntoOwned()
	if !ok {
		return OwnedRef[T]{}, false
	}
	if !r.ptr.CompareAndSwap(cur, nil) {
		return OwnedRef[T]{}, false
	}
	return owned, true
}

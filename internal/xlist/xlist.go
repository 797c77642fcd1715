// Package xlist implements the wait-free singly linked list trait: a
// polymorphic capability over any node type exposing a single "next"
// AtomicRef field. internal/btree's right-linked leaf chain is built on
// it, since a concurrent Range scan genuinely benefits from a lock-free
// traversal between leaves. internal/cellarray's overflow chain is
// deliberately NOT built on it: overflow mutation only ever happens
// under the owning cell's exclusive lock, so there is no lock-free
// traversal to support there (see internal/cellarray's cell.go and
// DESIGN.md).
package xlist

import (
	"errors"

	"github.com/arlenx/scc/internal/ebr"
)

// Tag bit layout of a node's next-link AtomicRef. Two bits total: one
// reserved for logical deletion (the tombstone tag), one left for
// application-defined marking (§4.3's Mark/IsMarked).
const (
	bitMarked    uint8 = 1 << 0
	bitTombstone uint8 = 1 << 1
)

// ErrDeleted is returned by PushBack when the node being appended to has
// already been logically deleted.
var ErrDeleted = errors.New("xlist: node is logically deleted")

// ErrHasSuccessor is returned by PushBack when the target node already
// has a next pointer; the caller should traverse with NextPtr and retry
// against the actual tail.
var ErrHasSuccessor = errors.New("xlist: node already has a successor")

// Node is the capability every list element must expose: a single
// AtomicRef pointing at the next element.
type Node[T any] interface {
	NextLink() *ebr.AtomicRef[T]
}

// PushBack appends newNode directly after after via a single CAS. It
// does not search for the tail — callers walk forward with NextPtr and
// retry PushBack against whatever node NextPtr stops at.
func PushBack[T Node[T]](domain *ebr.Domain, guard *ebr.Guard, after T, newNode T) error {
	link := after.NextLink()
	for {
		if link.LoadTag()&bitTombstone != 0 {
			return ErrDeleted
		}
		cur := link.Load(guard)
		if !cur.IsNil() {
			return ErrHasSuccessor
		}
		owned := ebr.NewOwnedRef(domain, newNode)
		if res := link.CompareExchange(cur, owned, cur.Tag()); res.OK {
			return nil
		}
	}
}

// NextPtr returns the first non-deleted successor of n, skipping over
// any tombstoned nodes in between and opportunistically unlinking them:
// when a tombstoned successor's own next field can be uniquely taken
// (no other holder), NextPtr physically splices it out and retires it.
func NextPtr[T Node[T]](guard *ebr.Guard, n T) (succ T, ok bool) {
	link := n.NextLink()
	for {
		lp := link.Load(guard)
		if lp.IsNil() {
			var zero T
			return zero, false
		}
		cand := *lp.Get()
		candLink := cand.NextLink()
		if candLink.LoadTag()&bitTombstone == 0 {
			return cand, true
		}

		// cand is logically deleted; try to physically splice it out by
		// taking unique ownership of what it points to and installing
		// that directly as n's successor.
		candTag := candLink.LoadTag()
		taken, uniq := candLink.TryIntoOwned()
		if !uniq {
			// Some other holder still references cand's target (or a
			// racing helper already took it). Advance the logical
			// predecessor and keep going — still correct, just not
			// physically compacted this round.
			n = cand
			link = n.NextLink()
			continue
		}

		res := link.CompareExchange(lp, taken, lp.Tag())
		if res.OK {
			res.Prior.Release() // retires cand exactly once
			continue
		}
		// Lost the race; restore what we took so it isn't leaked, and
		// retry from the same predecessor.
		candLink.Store(taken, candTag)
	}
}

// DeleteSelf marks n's next-link tombstoned, signalling that n is
// logically deleted. It never touches the pointed-to successor;
// physical unlinking happens lazily, the next time some traverser's
// NextPtr walks past n. Returns false if n was already deleted.
func DeleteSelf[T Node[T]](n T) bool {
	link := n.NextLink()
	for {
		cur := link.LoadTag()
		if cur&bitTombstone != 0 {
			return false
		}
		if link.UpdateTagIf(cur|bitTombstone, func(t uint8) bool { return t == cur }) {
			return true
		}
	}
}

// IsDeleted reports whether n has been marked via DeleteSelf.
func IsDeleted[T Node[T]](n T) bool {
	return n.NextLink().LoadTag()&bitTombstone != 0
}

// Mark sets the application-defined marker bit on n's next-link,
// independent of tombstone state. Returns false if already marked.
func Mark[T Node[T]](n T) bool {
	link := n.NextLink()
	for {
		cur := link.LoadTag()
		if cur&bitMarked != 0 {
			return false
		}
		if link.UpdateTagIf(cur|bitMarked, func(t uint8) bool { return t == cur }) {
			return true
		}
	}
}

// IsMarked reports whether n's application-defined marker bit is set.
func IsMarked[T Node[T]](n T) bool {
	return n.NextLink().LoadTag()&bitMarked != 0
}

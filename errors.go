package scc

import (
	"errors"
	"fmt"
)

// DuplicateKeyError is returned by Insert-style operations when the key
// already exists. It carries the caller's rejected value back rather
// than silently discarding it (§7's "returned with caller's value"
// disposition).
type DuplicateKeyError[V any] struct {
	Value V
}

func (e *DuplicateKeyError[V]) Error() string {
	return fmt.Sprintf("scc: duplicate key (value %v not inserted)", e.Value)
}

// ErrNotFound is returned by operations that require an existing key and
// report its absence as an error instead of ok=false (AsyncMap's Read and
// Remove variants).
var ErrNotFound = errors.New("scc: key not found")

// ErrAllocationFailure is the error value for the allocation-failure
// error kind of §7. No operation in this module returns it: none of them
// detects or reports an allocation failure.
var ErrAllocationFailure = errors.New("scc: allocation failure")

// InvariantViolation panics carry this message prefix, matching the
// teacher's plain panic("called CompareAndSwap ...")-style assertions
// rather than routing through a logging framework.
const invariantViolationPrefix = "scc: invariant violation: "

func invariantViolation(msg string) {
	panic(invariantViolationPrefix + msg)
}

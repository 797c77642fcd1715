package cellarray

import "fmt"

// DuplicateKeyError is returned by Insert when the key already exists.
// It carries the caller's rejected value back, per §7's
// "Returned with caller's value" disposition.
type DuplicateKeyError[V any] struct {
	Value V
}

func (e *DuplicateKeyError[V]) Error() string {
	return fmt.Sprintf("cellarray: duplicate key (value %v not inserted)", e.Value)
}

package ebr

// LocalPtr is a non-owning, barrier-scoped view of an AtomicRef's
// contents. It is valid only while the Guard that produced it remains
// open, and must never be stored past that Guard's Release. It carries
// no reference count of its own — the Guard is what keeps the pointed-to
// object alive.
type LocalPtr[T any] struct {
	guard   *Guard
	owned   OwnedRef[T]
	value   *T
	tag     uint8
	present bool
}

// IsNil reports whether the slot was empty at load time.
func (l LocalPtr[T]) IsNil() bool { return !l.present }

// Get returns the pointed-to value, or nil if the slot was empty.
func (l LocalPtr[T]) Get() *T { return l.value }

// Tag returns the two user-defined tag bits observed alongside the
// value.
func (l LocalPtr[T]) Tag() uint8 { return l.tag }

// Guard returns the barrier this LocalPtr is scoped to.
func (l LocalPtr[T]) Guard() *Guard { return l.guard }

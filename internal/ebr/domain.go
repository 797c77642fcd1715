// Package ebr implements epoch-based reclamation: a small engine that
// defers running a retired object's destructor until no participating
// goroutine can still be observing it through a lock-free pointer chase.
//
// Go has a tracing garbage collector, so nothing here frees memory; what
// it defers is the caller-supplied destructor thunk (closing a resource,
// running an invariant check, decrementing an external counter, …). The
// mechanics — epoch ring, per-participant slots, retirement batches — are
// exactly what a manual-memory implementation would need, which is the
// point of building it rather than leaning on the collector.
package ebr

import (
	"sync"
	"sync/atomic"
)

// ringSize is the number of epochs kept live at once. Three is the
// minimum that lets the engine distinguish "retired this round", "retired
// last round" (possibly still visible) and "retired two rounds ago"
// (provably unobservable, since every slot has by now either advanced
// past it or is inactive).
const ringSize = 3

// advanceEvery is the default cadence (in retirements) at which a
// participant opportunistically attempts to bump the global epoch.
const advanceEvery = 128

// inactiveEpoch marks a slot whose goroutine is not currently inside a
// barrier.
const inactiveEpoch = ^uint64(0)

// Domain is an epoch-reclamation registry. The zero value is not usable;
// construct with New. Each container constructs its own Domain unless one
// is injected through its WithDomain option; tests construct an isolated
// Domain per case so reclamation timing can be asserted without
// cross-test interference.
type Domain struct {
	globalEpoch atomic.Uint64

	mu    sync.Mutex // guards slots during registration/growth only
	slots []*slot

	pool sync.Pool // *slot free-list, recycled across Pin/Release

	retired    [ringSize]retiredList
	globalHeld retiredList // thunks that outlived every barrier check

	advanceEvery    int64
	retirementTick  atomic.Int64
}

// Option configures a Domain at construction time.
type Option func(*Domain)

// WithAdvanceEvery overrides the retirement cadence (default 128) at
// which a Retire call attempts to bump the global epoch.
func WithAdvanceEvery(n int) Option {
	return func(d *Domain) {
		if n > 0 {
			d.advanceEvery = int64(n)
		}
	}
}

// New creates an isolated epoch domain.
func New(opts ...Option) *Domain {
	d := &Domain{advanceEvery: advanceEvery}
	d.globalEpoch.Store(0)
	d.pool.New = func() any { return &slot{} }
	for _, o := range opts {
		o(d)
	}
	return d
}

// slot is a single participant's published epoch snapshot. One slot is
// acquired per live Guard; Go has no thread-locals, so a pooled,
// explicitly-scoped slot per Pin() stands in for the per-thread slot the
// spec describes.
type slot struct {
	epoch atomic.Uint64 // inactiveEpoch when not pinned
	owner *Domain
}

// register appends a fresh slot to the domain's tracked set. Slots are
// never removed (a participant may be recycled across many goroutines
// over the pool's lifetime); an inactive slot is simply skipped when
// computing the reclamation floor.
func (d *Domain) register(s *slot) {
	d.mu.Lock()
	d.slots = append(d.slots, s)
	d.mu.Unlock()
}

// acquireSlot pulls a slot from the pool, registering it with this domain
// on first use.
func (d *Domain) acquireSlot() *slot {
	s := d.pool.Get().(*slot)
	if s.owner != d {
		s.owner = d
		d.register(s)
	}
	return s
}

// Pin opens a barrier: it publishes the current global epoch into a
// freshly acquired slot and returns a Guard bound to it. The Guard must
// be released (typically via defer Guard.Release()) before the calling
// goroutine does anything else; no retired object's destructor may run
// while any Guard observing an epoch at or before its retirement epoch
// is still open.
func (d *Domain) Pin() *Guard {
	s := d.acquireSlot()
	s.epoch.Store(d.globalEpoch.Load())
	return &Guard{domain: d, slot: s}
}

// Epoch returns the current global epoch.
func (d *Domain) Epoch() uint64 {
	return d.globalEpoch.Load()
}

// minActiveEpoch scans every registered slot and returns the lowest
// published epoch among the active ones, or the current global epoch if
// none are active.
func (d *Domain) minActiveEpoch() uint64 {
	min := d.globalEpoch.Load()
	d.mu.Lock()
	slots := d.slots
	d.mu.Unlock()
	for _, s := range slots {
		e := s.epoch.Load()
		if e == inactiveEpoch {
			continue
		}
		if e < min {
			min = e
		}
	}
	return min
}

// tryAdvance bumps the global epoch by one if every active slot has
// already caught up to it. A lost race (another goroutine advances
// first, or a slot is mid-publish) simply means no advance happens this
// round — advancement is opportunistic and never blocks.
func (d *Domain) tryAdvance() {
	cur := d.globalEpoch.Load()
	d.mu.Lock()
	slots := d.slots
	d.mu.Unlock()
	for _, s := range slots {
		e := s.epoch.Load()
		if e == inactiveEpoch {
			continue
		}
		if e != cur {
			return
		}
	}
	d.globalEpoch.CompareAndSwap(cur, cur+1)
	d.reclaim()
}

// reclaim destroys every retired entry whose epoch is now at least two
// behind the reclamation floor (the lowest epoch published by an active
// slot, or the global epoch if none is active), across the ring and the
// overflow holding list.
func (d *Domain) reclaim() {
	floor := d.minActiveEpoch()
	for i := range d.retired {
		d.retired[i].drainBefore(floor)
	}
	d.globalHeld.drainBefore(floor)
}

package ebr

import "sync"

// retiredEntry is a single garbage entry awaiting reclamation.
type retiredEntry struct {
	epoch   uint64
	destroy func()
}

// retiredList is a mutex-protected set of garbage entries. A production
// engine would shard this per participant to avoid contention; this
// implementation favors clarity (one list per epoch-ring slot, plus the
// global overflow list) since the hot path this spec cares about is the
// container operations, not the collector itself.
type retiredList struct {
	mu      sync.Mutex
	entries []retiredEntry
}

func (l *retiredList) add(epoch uint64, destroy func()) {
	l.mu.Lock()
	l.entries = append(l.entries, retiredEntry{epoch: epoch, destroy: destroy})
	l.mu.Unlock()
}

// drainBefore destroys every entry whose epoch is at least two behind
// floor, per the state machine Live -> Retired(e) -> Destructible(global
// >= e+2) -> Destroyed.
func (l *retiredList) drainBefore(floor uint64) {
	l.mu.Lock()
	if len(l.entries) == 0 {
		l.mu.Unlock()
		return
	}
	kept := l.entries[:0]
	var due []retiredEntry
	for _, e := range l.entries {
		if floor >= 2 && e.epoch <= floor-2 {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	l.entries = kept
	l.mu.Unlock()

	for _, e := range due {
		e.destroy()
	}
}

// len reports the number of entries awaiting reclamation; used by tests
// to assert on garbage-set growth/shrinkage.
func (l *retiredList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Retire hands obj's destructor to the reclamation engine, tagged with
// the current global epoch. destroy is invoked at most once, no earlier
// than when every Guard able to observe obj through a concurrent
// pointer-chase has been released.
//
// Every advanceEvery-th call also attempts to bump the global epoch, per
// §4.1's "attempted opportunistically" cadence.
func (d *Domain) Retire(obj any, destroy func()) {
	epoch := d.globalEpoch.Load()
	ring := &d.retired[epoch%ringSize]
	ring.add(epoch, destroy)

	n := d.retirementTick.Add(1)
	if n%d.advanceEvery == 0 {
		d.tryAdvance()
	}
}

// Pending returns the total number of entries awaiting reclamation
// across the ring and the overflow list. Intended for tests asserting
// liveness ("the garbage set does not grow without bound").
func (d *Domain) Pending() int {
	n := d.globalHeld.len()
	for i := range d.retired {
		n += d.retired[i].len()
	}
	return n
}

package ebr

import (
	"sync"
	"testing"
)

func TestPinReleaseBasic(t *testing.T) {
	d := New()
	g := d.Pin()
	if g.Epoch() != 0 {
		t.Fatalf("expected epoch 0, got %d", g.Epoch())
	}
	g.Release()
}

func TestRetireDeferredUntilGuardReleased(t *testing.T) {
	d := New(WithAdvanceEvery(1))
	destroyed := false

	g := d.Pin() // pin at epoch 0, keep it open
	d.Retire(struct{}{}, func() { destroyed = true })

	// Advancing the epoch repeatedly must not free the object while g is
	// still open: g's pinned epoch blocks the reclamation floor.
	for i := 0; i < 5; i++ {
		other := d.Pin()
		d.Retire(struct{}{}, func() {})
		other.Release()
	}
	if destroyed {
		t.Fatal("destructor ran while a covering guard was still open")
	}

	g.Release()

	// Now drive enough epoch advances that the retirement (epoch 0) is
	// at least two behind the current global epoch.
	for i := 0; i < 5; i++ {
		p := d.Pin()
		d.Retire(struct{}{}, func() {})
		p.Release()
	}
	if !destroyed {
		t.Fatal("destructor never ran after the covering guard released and epoch advanced")
	}
}

func TestPendingDoesNotGrowUnboundedUnderSteadyPinRelease(t *testing.T) {
	d := New(WithAdvanceEvery(8))
	for i := 0; i < 1000; i++ {
		g := d.Pin()
		d.Retire(i, func() {})
		g.Release()
	}
	if p := d.Pending(); p > 64 {
		t.Fatalf("garbage set grew unbounded: %d entries pending", p)
	}
}

func TestAtomicRefLoadStore(t *testing.T) {
	d := New()
	var ref AtomicRef[int]

	g := d.Pin()
	defer g.Release()

	if !ref.Load(g).IsNil() {
		t.Fatal("expected nil initial load")
	}

	owned := NewOwnedRef(d, 42)
	ref.Store(owned, 0)

	lp := ref.Load(g)
	if lp.IsNil() || *lp.Get() != 42 {
		t.Fatalf("expected 42, got %+v", lp)
	}
}

func TestAtomicRefCompareExchangeTagParticipates(t *testing.T) {
	d := New()
	var ref AtomicRef[string]
	g := d.Pin()
	defer g.Release()

	ref.Store(NewOwnedRef(d, "a"), 1)
	expected := ref.Load(g)

	res := ref.CompareExchange(expected, NewOwnedRef(d, "b"), 2)
	if !res.OK {
		t.Fatal("expected CAS success on matching value+tag")
	}

	// Retry against the stale snapshot must fail and report the fresh
	// content.
	res2 := ref.CompareExchange(expected, NewOwnedRef(d, "c"), 3)
	if res2.OK {
		t.Fatal("expected CAS failure against stale expected value")
	}
	if res2.Observed.Tag() != 2 || *res2.Observed.Get() != "b" {
		t.Fatalf("unexpected observed state: %+v", res2.Observed)
	}
}

func TestUpdateTagIfLeavesOwnerIntact(t *testing.T) {
	d := New()
	var ref AtomicRef[int]
	g := d.Pin()
	defer g.Release()

	ref.Store(NewOwnedRef(d, 7), 0)
	ok := ref.UpdateTagIf(3, func(tag uint8) bool { return tag == 0 })
	if !ok {
		t.Fatal("expected tag update to succeed")
	}
	lp := ref.Load(g)
	if lp.Tag() != 3 || *lp.Get() != 7 {
		t.Fatalf("unexpected state after tag update: %+v", lp)
	}

	ok = ref.UpdateTagIf(4, func(tag uint8) bool { return tag == 0 })
	if ok {
		t.Fatal("expected predicate mismatch to reject update")
	}
}

func TestOwnedRefRefcountAndRelease(t *testing.T) {
	d := New()
	o := NewOwnedRef(d, "x")
	c := o.Clone()
	if o.refCount() != 2 {
		t.Fatalf("expected refcount 2 after clone, got %d", o.refCount())
	}
	o.Release()
	if c.refCount() != 1 {
		t.Fatalf("expected refcount 1 after one release, got %d", c.refCount())
	}
	c.Release()
}

func TestConcurrentPinRetireRace(t *testing.T) {
	d := New(WithAdvanceEvery(16))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				g := d.Pin()
				d.Retire(j, func() {})
				g.Release()
			}
		}()
	}
	wg.Wait()
}

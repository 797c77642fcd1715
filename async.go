package scc

import (
	"context"
	"sync"
)

// AsyncMap layers C8's suspension discipline on top of Map. Go's own
// goroutine scheduler already is the "externally provided executor"
// the suspension model asks for, so there is no separate reactor to
// integrate with: a goroutine racing another goroutine for the same
// key only ever suspends at the point of actual contention (never
// busy-spins), parking on a single-shot buffered channel until the
// slot for that key is handed to it. The inFlight entry for a key is
// really a FIFO-ordered mutex: whoever holds it runs its *own* op, and
// on completion hands the slot to the next queued waiter (if any)
// instead of broadcasting its own result — so 999 callers racing an
// insert each genuinely attempt their own insert in arrival order, and
// only the one that runs first against an absent key succeeds. A
// cancelled context dequeues its waiter rather than leaving it parked,
// and reconciles the narrow race where a handoff was already in flight
// when the cancellation landed.
type AsyncMap[K comparable, V any] struct {
	m *Map[K, V]

	mu       sync.Mutex
	inFlight map[K]*asyncOp[V]
}

type asyncOp[V any] struct {
	waiters []chan struct{}
}

// removeWaiter removes ch from the queue if still present, reporting
// whether it found (and removed) it. A false return means ch was
// already popped and handed its turn by a concurrent finishAndHandoff.
func (op *asyncOp[V]) removeWaiter(ch chan struct{}) bool {
	for i, w := range op.waiters {
		if w == ch {
			op.waiters = append(op.waiters[:i], op.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// NewAsyncMap constructs an AsyncMap presized for at least capacity
// entries.
func NewAsyncMap[K comparable, V any](capacity int, opts ...MapOption[K, V]) *AsyncMap[K, V] {
	return &AsyncMap[K, V]{
		m:        NewMap[K, V](capacity, opts...),
		inFlight: make(map[K]*asyncOp[V]),
	}
}

// finishAndHandoff releases the inFlight slot for key: if another
// goroutine is queued behind it, the slot is handed directly to the
// head of the queue (which will run its own op next); otherwise the
// entry is removed entirely. The handoff send happens while still
// holding am.mu — the channel is single-shot buffered (cap 1) so this
// never blocks — which is what lets a cancelling waiter in doAsync
// tell, deterministically rather than via a timing race, whether it
// was already handed the slot before it could dequeue itself.
func (am *AsyncMap[K, V]) finishAndHandoff(key K) {
	am.mu.Lock()
	defer am.mu.Unlock()
	cur, ok := am.inFlight[key]
	if !ok || len(cur.waiters) == 0 {
		delete(am.inFlight, key)
		return
	}
	next := cur.waiters[0]
	cur.waiters = cur.waiters[1:]
	next <- struct{}{}
}

// doAsync runs op for key, or — if another goroutine already holds
// key's slot — suspends until that slot is handed to it, at which
// point it runs op itself (ctx cancellation dequeues the suspended
// caller and returns ctx.Err() instead of blocking further).
func (am *AsyncMap[K, V]) doAsync(ctx context.Context, key K, op func() (V, error)) (V, error) {
	am.mu.Lock()
	if inflight, busy := am.inFlight[key]; busy {
		ch := make(chan struct{}, 1)
		inflight.waiters = append(inflight.waiters, ch)
		am.mu.Unlock()

		select {
		case <-ch:
			// Handed the slot: run our own op, below.
		case <-ctx.Done():
			am.mu.Lock()
			removed := inflight.removeWaiter(ch)
			am.mu.Unlock()
			if !removed {
				// Lost the race: finishAndHandoff already popped and
				// sent to ch before we could dequeue ourselves. Drain
				// the (already-buffered, non-blocking) handoff and pass
				// it on so the key doesn't wedge with no runner.
				<-ch
				am.finishAndHandoff(key)
			}
			var zero V
			return zero, ctx.Err()
		}
	} else {
		am.inFlight[key] = &asyncOp[V]{}
		am.mu.Unlock()
	}

	v, err := op()
	am.finishAndHandoff(key)
	return v, err
}

// tryDo is doAsync's non-blocking sibling: it never suspends, instead
// reporting resolved=false immediately if key's slot is already held.
func (am *AsyncMap[K, V]) tryDo(key K, op func() (V, error)) (value V, err error, resolved bool) {
	am.mu.Lock()
	if _, busy := am.inFlight[key]; busy {
		am.mu.Unlock()
		return value, nil, false
	}
	am.inFlight[key] = &asyncOp[V]{}
	am.mu.Unlock()

	v, opErr := op()
	am.finishAndHandoff(key)
	return v, opErr, true
}

// InsertAsync adds key with value if absent, suspending instead of
// racing if another goroutine is concurrently inserting the same key.
func (am *AsyncMap[K, V]) InsertAsync(ctx context.Context, key K, value V) (V, error) {
	return am.doAsync(ctx, key, func() (V, error) { return am.m.Insert(key, value) })
}

// TryInsert is InsertAsync's non-blocking poll: it never suspends.
func (am *AsyncMap[K, V]) TryInsert(key K, value V) (V, error, bool) {
	return am.tryDo(key, func() (V, error) { return am.m.Insert(key, value) })
}

// ReadAsync looks up key, suspending instead of racing if another
// goroutine is concurrently operating on the same key.
func (am *AsyncMap[K, V]) ReadAsync(ctx context.Context, key K) (V, error) {
	return am.doAsync(ctx, key, func() (V, error) {
		v, ok := am.m.Read(key, func(v V) V { return v })
		if !ok {
			var zero V
			return zero, ErrNotFound
		}
		return v, nil
	})
}

// TryRead is ReadAsync's non-blocking poll.
func (am *AsyncMap[K, V]) TryRead(key K) (V, error, bool) {
	return am.tryDo(key, func() (V, error) {
		v, ok := am.m.Read(key, func(v V) V { return v })
		if !ok {
			var zero V
			return zero, ErrNotFound
		}
		return v, nil
	})
}

// RemoveAsync deletes key if present, suspending instead of racing if
// another goroutine is concurrently operating on the same key.
func (am *AsyncMap[K, V]) RemoveAsync(ctx context.Context, key K) (V, error) {
	return am.doAsync(ctx, key, func() (V, error) {
		v, ok := am.m.Remove(key)
		if !ok {
			var zero V
			return zero, ErrNotFound
		}
		return v, nil
	})
}

// TryRemove is RemoveAsync's non-blocking poll.
func (am *AsyncMap[K, V]) TryRemove(key K) (V, error, bool) {
	return am.tryDo(key, func() (V, error) {
		v, ok := am.m.Remove(key)
		if !ok {
			var zero V
			return zero, ErrNotFound
		}
		return v, nil
	})
}

// UpsertAsync inserts make() if key is absent, or replaces it with
// modify(existing) if present, suspending instead of racing if another
// goroutine is concurrently operating on the same key.
func (am *AsyncMap[K, V]) UpsertAsync(ctx context.Context, key K, make func() V, modify func(V) V) (V, error) {
	return am.doAsync(ctx, key, func() (V, error) {
		v, _ := am.m.Upsert(key, make, modify)
		return v, nil
	})
}

// TryUpsert is UpsertAsync's non-blocking poll.
func (am *AsyncMap[K, V]) TryUpsert(key K, make func() V, modify func(V) V) (V, error, bool) {
	return am.tryDo(key, func() (V, error) {
		v, _ := am.m.Upsert(key, make, modify)
		return v, nil
	})
}

// Len reports the number of entries currently stored.
func (am *AsyncMap[K, V]) Len() int { return am.m.Len() }

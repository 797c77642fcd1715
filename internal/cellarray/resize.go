package cellarray

import "sync/atomic"

// migration describes the single in-progress incremental resize, if any.
// At most one may exist at a time (§3: "Resize state. Zero or one
// in-progress migration at a time").
type migration[K comparable, V any] struct {
	old    *Table[K, V]
	next   *Table[K, V]
	cursor atomic.Uint64 // next old-array cell index to claim
	done   atomic.Uint64 // cells fully migrated so far
}

// tryStartMigration installs a new migration from tbl to a freshly
// allocated table of newLen cells. It is idempotent: if a migration is
// already in flight (installed by a racing goroutine), this call is a
// no-op and the existing migration is returned.
func (a *Array[K, V]) tryStartMigration(tbl *Table[K, V], newLen int) *migration[K, V] {
	mig := &migration[K, V]{old: tbl, next: newTable[K, V](newLen)}
	if !a.mig.CompareAndSwap(nil, mig) {
		return a.mig.Load()
	}
	return mig
}

// helpMigrate claims the next un-migrated old cell (if any remain) and
// migrates its live entries into the new table. It holds the source cell's
// lock and takes one destination cell lock at a time; since an old-table
// lock is always taken before a new-table lock, concurrent helpers cannot
// deadlock. Returns true if this call
// performed the cell that completed the migration, in which case it has
// already published the new table and cleared the migration slot.
func (a *Array[K, V]) helpMigrate(mig *migration[K, V]) bool {
	total := uint64(len(mig.old.cells))
	idx := mig.cursor.Add(1) - 1
	if idx >= total {
		return false
	}

	src := &mig.old.cells[idx]
	src.mu.Lock()
	src.forEachLocked(func(e *Entry[K, V]) bool {
		h := a.hasher(e.Key)
		dst := mig.next.cellFor(h)
		dst.mu.Lock()
		dst.insertLocked(fingerprint(h), &Entry[K, V]{Key: e.Key, Value: e.Value})
		dst.mu.Unlock()
		return true
	})
	src.killed = true
	src.mu.Unlock()

	if mig.done.Add(1) == total {
		a.table.Store(mig.next)
		a.mig.Store(nil)
		a.domain.Retire(mig.old, func() {})
		return true
	}
	return false
}

// helpUntilTableAdvances keeps claiming migration work until the array's
// published table generation differs from stale, or no migration is
// active. It is what a caller stuck on a killed cell loops on before
// retrying its operation.
func (a *Array[K, V]) helpUntilTableAdvances(stale *Table[K, V]) {
	for {
		mig := a.mig.Load()
		if mig == nil {
			if a.table.Load() != stale {
				return
			}
			// A migration finished between our check and here, or never
			// started (e.g. we're observing a stale killed flag from a
			// table already fully replaced); either way the table has
			// moved on.
			return
		}
		a.helpMigrate(mig)
		if a.table.Load() != stale {
			return
		}
	}
}

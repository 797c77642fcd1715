package cow

// entry is one key-value pair stored in a bucket.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// bucket is an immutable snapshot of one hash slot's colliding entries.
// Every mutation produces a brand-new bucket rather than touching this
// one, so a reader holding a *bucket never observes a write in
// progress — the copy-on-write discipline that makes Index reads
// lock-free (§4.6, grounded on the teacher's MapOf.Load/RangeEntry
// lock-free traversal: no write ever touches memory a concurrent
// reader is mid-dereference of).
type bucket[K comparable, V any] struct {
	entries []entry[K, V]
}

func (b *bucket[K, V]) find(key K, eq func(K, K) bool) (V, bool) {
	if b == nil {
		var zero V
		return zero, false
	}
	for _, e := range b.entries {
		if eq(e.key, key) {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// withUpserted returns a new bucket with key set to value, and reports
// whether key was already present.
func (b *bucket[K, V]) withUpserted(key K, value V, eq func(K, K) bool) (*bucket[K, V], bool) {
	if b == nil {
		return &bucket[K, V]{entries: []entry[K, V]{{key, value}}}, false
	}
	entries := make([]entry[K, V], len(b.entries))
	copy(entries, b.entries)
	for i := range entries {
		if eq(entries[i].key, key) {
			entries[i].value = value
			return &bucket[K, V]{entries: entries}, true
		}
	}
	entries = append(entries, entry[K, V]{key, value})
	return &bucket[K, V]{entries: entries}, false
}

// withInserted is withUpserted's strict cousin: it refuses to replace
// an existing entry, instead reporting the existing value.
func (b *bucket[K, V]) withInserted(key K, value V, eq func(K, K) bool) (nb *bucket[K, V], existing V, conflict bool) {
	if b != nil {
		for _, e := range b.entries {
			if eq(e.key, key) {
				return nil, e.value, true
			}
		}
	}
	if b == nil {
		return &bucket[K, V]{entries: []entry[K, V]{{key, value}}}, existing, false
	}
	entries := make([]entry[K, V], len(b.entries), len(b.entries)+1)
	copy(entries, b.entries)
	entries = append(entries, entry[K, V]{key, value})
	return &bucket[K, V]{entries: entries}, existing, false
}

// withRemoved returns a new bucket without key, plus key's prior value.
func (b *bucket[K, V]) withRemoved(key K, eq func(K, K) bool) (nb *bucket[K, V], removed V, ok bool) {
	if b == nil {
		return nil, removed, false
	}
	for i, e := range b.entries {
		if !eq(e.key, key) {
			continue
		}
		if len(b.entries) == 1 {
			return nil, e.value, true
		}
		entries := make([]entry[K, V], 0, len(b.entries)-1)
		entries = append(entries, b.entries[:i]...)
		entries = append(entries, b.entries[i+1:]...)
		return &bucket[K, V]{entries: entries}, e.value, true
	}
	return b, removed, false
}

func (b *bucket[K, V]) len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

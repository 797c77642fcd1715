package btree

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arlenx/scc/internal/ebr"
	"github.com/arlenx/scc/internal/xlist"
)

// DuplicateKeyError is returned by Insert when the key already exists.
type DuplicateKeyError[V any] struct {
	Value V
}

func (e *DuplicateKeyError[V]) Error() string {
	return fmt.Sprintf("btree: duplicate key (value %v not inserted)", e.Value)
}

// TreeIndex is a concurrent B+ tree. Reads latch-couple with shared
// locks and never block behind each other. Writes are serialized
// against one another (writeMu), each taking exclusive locks down the
// single root-to-leaf path it touches, so a concurrent reader is only
// ever blocked by a writer actually crossing the same node — this
// trades the fully lock-free insert path a production B+ tree would
// have for a correct, simple one; see DESIGN.md.
type TreeIndex[K any, V any] struct {
	domain  *ebr.Domain
	writeMu sync.Mutex
	rootMu  sync.RWMutex
	root    node[K, V]
	less    func(K, K) bool
	size    atomic.Int64
}

type Option[K any, V any] func(*TreeIndex[K, V])

func WithDomain[K any, V any](d *ebr.Domain) Option[K, V] {
	return func(t *TreeIndex[K, V]) { t.domain = d }
}

// New constructs a TreeIndex ordered by less. capacity is an advisory
// arena-sizing hint only — a tree has no fixed bucket count to presize.
func New[K any, V any](less func(K, K) bool, capacity int, opts ...Option[K, V]) *TreeIndex[K, V] {
	_ = capacity
	t := &TreeIndex[K, V]{less: less}
	for _, opt := range opts {
		opt(t)
	}
	if t.domain == nil {
		t.domain = ebr.New()
	}
	return t
}

// Pin returns a barrier token scoping a Read or a Range scan.
func (t *TreeIndex[K, V]) Pin() *ebr.Guard { return t.domain.Pin() }

// Read looks up key under shared lock coupling.
func (t *TreeIndex[K, V]) Read(guard *ebr.Guard, key K) (V, bool) {
	_ = guard
	t.rootMu.RLock()
	cur := t.root
	if cur == nil {
		t.rootMu.RUnlock()
		var zero V
		return zero, false
	}
	cur.lockShared()
	t.rootMu.RUnlock()

	for {
		if lf, ok := cur.(*leaf[K, V]); ok {
			v, found := lf.findLocked(key, t.less)
			lf.unlockShared()
			return v, found
		}
		in := cur.(*internal[K, V])
		child, _ := in.childForLocked(key, t.less)
		child.lockShared()
		in.unlockShared()
		cur = child
	}
}

// Insert adds key with value if absent.
func (t *TreeIndex[K, V]) Insert(key K, value V) (V, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.rootMu.Lock()
	if t.root == nil {
		t.root = &leaf[K, V]{keys: []K{key}, values: []V{value}}
		t.rootMu.Unlock()
		t.size.Add(1)
		return value, nil
	}

	// Every node on the path is taken exclusively and held until the
	// whole insert (including any split propagation) completes; only
	// one writer is ever in flight, so this cannot deadlock.
	var path []*internal[K, V]
	var idxPath []int
	cur := t.root
	cur.lockExclusive()
	t.rootMu.Unlock()

	for {
		if lf, ok := cur.(*leaf[K, V]); ok {
			if existing, found := lf.findLocked(key, t.less); found {
				t.unlockPath(path)
				lf.unlockExclusive()
				return existing, &DuplicateKeyError[V]{Value: value}
			}
			lf.insertLocked(key, value, t.less)
			if isFullLeaf(lf) {
				nl, sep := lf.split(t.domain)
				t.propagateSplit(path, idxPath, nl, sep)
			}
			lf.unlockExclusive()
			t.unlockPath(path)
			t.size.Add(1)
			return value, nil
		}

		in := cur.(*internal[K, V])
		child, idx := in.childForLocked(key, t.less)
		child.lockExclusive()
		path = append(path, in)
		idxPath = append(idxPath, idx)
		cur = child
	}
}

// propagateSplit installs newNode (with separator sep) into the parent
// named at the end of path, splitting that parent in turn if it
// overflows, and so on up to the root.
func (t *TreeIndex[K, V]) propagateSplit(path []*internal[K, V], idxPath []int, newNode node[K, V], sep K) {
	for i := len(path) - 1; i >= 0; i-- {
		parent := path[i]
		parent.insertSeparatorLocked(idxPath[i], sep, newNode)
		if !isFullInternal(parent) {
			return
		}
		newNode, sep = parent.split()
	}
	// Root itself split: grow the tree by one level. rootMu is taken
	// here (not held since the start of Insert) because only this path
	// ever reassigns t.root past construction, and a concurrent Read
	// takes rootMu.RLock before dereferencing t.root.
	t.rootMu.Lock()
	t.root = &internal[K, V]{
		seps:      []K{sep},
		children:  []node[K, V]{t.root},
		unbounded: newNode,
	}
	t.rootMu.Unlock()
}

// unlockPath releases every internal node visited, innermost first.
func (t *TreeIndex[K, V]) unlockPath(path []*internal[K, V]) {
	for i := len(path) - 1; i >= 0; i-- {
		path[i].unlockExclusive()
	}
}

// Remove deletes key if present. Underfull nodes are left in place: a
// full rebalance-on-delete is out of scope for this essentials-only
// tree (see DESIGN.md).
func (t *TreeIndex[K, V]) Remove(key K) (V, bool) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.rootMu.Lock()
	cur := t.root
	if cur == nil {
		t.rootMu.Unlock()
		var zero V
		return zero, false
	}
	cur.lockExclusive()
	t.rootMu.Unlock()

	for {
		if lf, ok := cur.(*leaf[K, V]); ok {
			v, found := lf.removeLocked(key, t.less)
			lf.unlockExclusive()
			if found {
				t.size.Add(-1)
			}
			return v, found
		}
		in := cur.(*internal[K, V])
		child, _ := in.childForLocked(key, t.less)
		child.lockExclusive()
		in.unlockExclusive()
		cur = child
	}
}

// Range visits entries in ascending order starting at the first key not
// less than from, stopping early if fn returns false. The scan crosses
// leaves via the wait-free right-link (internal/xlist) rather than
// re-descending from the root, so a concurrent insert elsewhere in the
// tree never blocks it.
func (t *TreeIndex[K, V]) Range(guard *ebr.Guard, from K, fn func(key K, value V) bool) {
	t.rootMu.RLock()
	cur := t.root
	if cur == nil {
		t.rootMu.RUnlock()
		return
	}
	cur.lockShared()
	t.rootMu.RUnlock()

	var lf *leaf[K, V]
	for {
		if l, ok := cur.(*leaf[K, V]); ok {
			lf = l
			break
		}
		in := cur.(*internal[K, V])
		child, _ := in.childForLocked(from, t.less)
		child.lockShared()
		in.unlockShared()
		cur = child
	}

	i := lf.lowerBound(from, t.less)
	for lf != nil {
		for ; i < len(lf.keys); i++ {
			if !fn(lf.keys[i], lf.values[i]) {
				lf.unlockShared()
				return
			}
		}
		next, ok := xlist.NextPtr[*leaf[K, V]](guard, lf)
		lf.unlockShared()
		if !ok {
			return
		}
		next.lockShared()
		lf = next
		i = 0
	}
}

// Len reports the number of entries currently stored.
func (t *TreeIndex[K, V]) Len() int { return int(t.size.Load()) }

// IsEmpty reports whether Len() == 0.
func (t *TreeIndex[K, V]) IsEmpty() bool { return t.Len() == 0 }

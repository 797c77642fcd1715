package xlist

import (
	"testing"

	"github.com/arlenx/scc/internal/ebr"
)

type node struct {
	val  int
	next ebr.AtomicRef[*node]
}

func (n *node) NextLink() *ebr.AtomicRef[*node] { return &n.next }

func collect(domain *ebr.Domain, head *node) []int {
	g := domain.Pin()
	defer g.Release()
	var out []int
	cur := head
	for {
		succ, ok := NextPtr[*node](g, cur)
		if !ok {
			break
		}
		out = append(out, succ.val)
		cur = succ
	}
	return out
}

func TestPushBackAndTraverse(t *testing.T) {
	domain := ebr.New()
	g := domain.Pin()
	head := &node{val: -1}
	for i := 0; i < 5; i++ {
		tail := head
		for {
			next, ok := NextPtr[*node](g, tail)
			if !ok {
				break
			}
			tail = next
		}
		if err := PushBack[*node](domain, g, tail, &node{val: i}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	g.Release()

	got := collect(domain, head)
	want := []int{0, 1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestDeleteSelfSkippedByTraversal(t *testing.T) {
	domain := ebr.New()
	g := domain.Pin()
	head := &node{val: -1}
	nodes := make([]*node, 5)
	tail := head
	for i := range nodes {
		nodes[i] = &node{val: i}
		if err := PushBack[*node](domain, g, tail, nodes[i]); err != nil {
			t.Fatal(err)
		}
		tail = nodes[i]
	}
	g.Release()

	if !DeleteSelf[*node](nodes[2]) {
		t.Fatal("expected first delete to succeed")
	}
	if DeleteSelf[*node](nodes[2]) {
		t.Fatal("expected second delete to report already-deleted")
	}

	got := collect(domain, head)
	want := []int{0, 1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestMarkIndependentOfTombstone(t *testing.T) {
	n := &node{val: 1}
	if IsMarked[*node](n) {
		t.Fatal("fresh node should not be marked")
	}
	if !Mark[*node](n) {
		t.Fatal("expected first mark to succeed")
	}
	if Mark[*node](n) {
		t.Fatal("expected second mark to report already-marked")
	}
	if !IsMarked[*node](n) {
		t.Fatal("expected IsMarked true after Mark")
	}
	if IsDeleted[*node](n) {
		t.Fatal("marking must not imply deletion")
	}
	if !DeleteSelf[*node](n) {
		t.Fatal("expected delete to succeed independent of mark")
	}
	if !IsMarked[*node](n) {
		t.Fatal("delete must preserve the mark bit")
	}
}

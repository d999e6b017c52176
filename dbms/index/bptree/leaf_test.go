package bptree

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/kr/pretty"

	"github.com/btree-query-bench/bptidx/dbms/index"
	"github.com/btree-query-bench/bptidx/dbms/index/btpage"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

func keysOf(entries []LeafEntry) []int32 {
	keys := make([]int32, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

func fullLeaf(t *testing.T) *LeafNode {
	t.Helper()
	n := new(LeafNode)
	for i := 1; i <= btpage.LeafCapacity; i++ {
		if err := n.Insert(int32(i), ref(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	return n
}

func TestLeafInsertKeepsKeysSorted(t *testing.T) {
	var n LeafNode
	for i, k := range []int32{50, -3, 7, 0, 7, 2147483647, -2147483648} {
		if err := n.Insert(k, ref(i)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}

	want := []LeafEntry{
		{Key: -2147483648, Ref: ref(6)},
		{Key: -3, Ref: ref(1)},
		{Key: 0, Ref: ref(3)},
		{Key: 7, Ref: ref(2)},
		{Key: 7, Ref: ref(4)},
		{Key: 50, Ref: ref(0)},
		{Key: 2147483647, Ref: ref(5)},
	}
	if diff := pretty.Diff(want, n.Entries()); len(diff) > 0 {
		t.Errorf("entries differ:\n%s", pretty.Sprint(diff))
	}
}

func TestLeafInsertFull(t *testing.T) {
	n := fullLeaf(t)
	before := n.Entries()

	err := n.Insert(0, ref(0))
	if !errors.Is(err, ErrNodeFull) {
		t.Fatalf("expected ErrNodeFull, got %v", err)
	}
	if n.EntryCount() != btpage.LeafCapacity {
		t.Errorf("count changed to %d", n.EntryCount())
	}
	if diff := pretty.Diff(before, n.Entries()); len(diff) > 0 {
		t.Errorf("full insert modified the node:\n%s", pretty.Sprint(diff))
	}
}

func TestLeafInsertAndSplit(t *testing.T) {
	n := fullLeaf(t)
	var sibling LeafNode

	sep, err := n.InsertAndSplit(85, ref(85), &sibling)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if n.EntryCount() != 43 || sibling.EntryCount() != 42 {
		t.Fatalf("expected 43/42 split, got %d/%d", n.EntryCount(), sibling.EntryCount())
	}
	if sep != 44 {
		t.Errorf("expected separator 44, got %d", sep)
	}

	left, right := keysOf(n.Entries()), keysOf(sibling.Entries())
	for i, k := range left {
		if k != int32(i+1) {
			t.Fatalf("left slot %d holds %d", i, k)
		}
	}
	for i, k := range right {
		if k != int32(i+44) {
			t.Fatalf("right slot %d holds %d", i, k)
		}
	}
	if left[len(left)-1] >= right[0] {
		t.Errorf("left max %d is not below right min %d", left[len(left)-1], right[0])
	}
}

func TestLeafSplitInsertsIntoLowerHalf(t *testing.T) {
	var n LeafNode
	for i := 0; i < btpage.LeafCapacity; i++ {
		if err := n.Insert(int32(i*10), ref(i)); err != nil {
			t.Fatal(err)
		}
	}
	var sibling LeafNode
	sep, err := n.InsertAndSplit(5, ref(1000), &sibling)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if n.EntryCount()+sibling.EntryCount() != btpage.LeafCapacity+1 {
		t.Fatalf("entries lost: %d + %d", n.EntryCount(), sibling.EntryCount())
	}
	if got, _, _ := n.ReadEntry(1); got != 5 {
		t.Errorf("new key should sit in slot 1 of the left node, found %d", got)
	}
	if first, _, _ := sibling.ReadEntry(0); first != sep {
		t.Errorf("separator %d is not the sibling's first key %d", sep, first)
	}
}

func TestLeafSplitPreconditions(t *testing.T) {
	var notFull LeafNode
	_ = notFull.Insert(1, ref(1))
	var sibling LeafNode
	if _, err := notFull.InsertAndSplit(2, ref(2), &sibling); !errors.Is(err, ErrNodeNotFull) {
		t.Errorf("expected ErrNodeNotFull, got %v", err)
	}

	n := fullLeaf(t)
	_ = sibling.Insert(7, ref(7))
	if _, err := n.InsertAndSplit(100, ref(100), &sibling); !errors.Is(err, ErrSiblingNotEmpty) {
		t.Errorf("expected ErrSiblingNotEmpty, got %v", err)
	}
}

func TestLeafLocate(t *testing.T) {
	var n LeafNode
	for _, k := range []int32{10, 20, 20, 30} {
		_ = n.Insert(k, ref(int(k)))
	}

	tests := []struct {
		key  int32
		slot int
	}{
		{key: -5, slot: 0},
		{key: 10, slot: 0},
		{key: 15, slot: 1},
		{key: 20, slot: 1},
		{key: 30, slot: 3},
	}
	for _, tt := range tests {
		slot, err := n.Locate(tt.key)
		if err != nil || slot != tt.slot {
			t.Errorf("Locate(%d) = %d, %v; want %d", tt.key, slot, err, tt.slot)
		}
	}

	slot, err := n.Locate(31)
	if !errors.Is(err, ErrNotFound) || slot != 4 {
		t.Errorf("Locate(31) = %d, %v; want 4, ErrNotFound", slot, err)
	}

	var empty LeafNode
	if slot, err := empty.Locate(0); !errors.Is(err, ErrNotFound) || slot != 0 {
		t.Errorf("empty Locate = %d, %v", slot, err)
	}
}

func TestLeafReadEntry(t *testing.T) {
	var n LeafNode
	_ = n.Insert(4, index.RecordRef{Page: 3, Slot: 2})

	k, r, err := n.ReadEntry(0)
	if err != nil || k != 4 || r != (index.RecordRef{Page: 3, Slot: 2}) {
		t.Errorf("ReadEntry(0) = %d, %v, %v", k, r, err)
	}
	for _, slot := range []int{-1, 1, btpage.LeafCapacity} {
		if _, _, err := n.ReadEntry(slot); !errors.Is(err, ErrSlotOutOfRange) {
			t.Errorf("ReadEntry(%d): expected ErrSlotOutOfRange, got %v", slot, err)
		}
	}
}

func TestLeafPageRoundTrip(t *testing.T) {
	p, err := pager.Open(tempPath(t), pager.ModeWrite, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if _, err := p.Allocate(); err != nil {
		t.Fatal(err)
	}
	id, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}

	n := fullLeaf(t)
	n.SetNextSibling(17)
	if err := n.WriteTo(id, p); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got LeafNode
	if err := got.ReadFrom(id, p); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.NextSibling() != 17 {
		t.Errorf("next sibling = %d", got.NextSibling())
	}
	if diff := pretty.Diff(n.Entries(), got.Entries()); len(diff) > 0 {
		t.Errorf("round trip differs:\n%s", pretty.Sprint(diff))
	}

	// A freshly allocated page decodes as an empty last leaf.
	var blank LeafNode
	if err := blank.ReadFrom(0, p); err != nil {
		t.Fatal(err)
	}
	if blank.EntryCount() != 0 || blank.NextSibling() != pager.NoPage {
		t.Errorf("blank page decoded as %d entries, next %d", blank.EntryCount(), blank.NextSibling())
	}
}

func TestLeafReadCorruptCount(t *testing.T) {
	p, err := pager.Open(tempPath(t), pager.ModeWrite, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	var pg pager.Page
	btpage.SetNumEntries(&pg, btpage.LeafCapacity+1)
	if err := p.Write(0, &pg); err != nil {
		t.Fatal(err)
	}
	var n LeafNode
	if err := n.ReadFrom(0, p); !errors.Is(err, ErrCorruptPage) {
		t.Errorf("expected ErrCorruptPage, got %v", err)
	}
}

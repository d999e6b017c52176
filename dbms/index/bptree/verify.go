package bptree

import (
	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/index/btpage"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

// Stats summarizes a verified tree.
type Stats struct {
	Height    int
	Leaves    int
	Internals int
	Entries   int
	Pages     pager.PageID // allocated pages, meta page included
}

// LeafFill returns the average leaf occupancy in [0, 1].
func (s Stats) LeafFill() float64 {
	if s.Leaves == 0 {
		return 0
	}
	return float64(s.Entries) / float64(s.Leaves*btpage.LeafCapacity)
}

// Verify walks the whole tree and checks that keys are sorted within and
// across nodes, every key lies within the bounds of its parent separators,
// all leaves sit at depth height-1 and the sibling chain visits the leaves in
// key order, ending in pager.NoPage. Violations wrap ErrTreeInvariant.
func (t *Tree) Verify() (Stats, error) {
	st := Stats{Height: t.height, Pages: t.store.EndPageID()}
	if t.height == 0 {
		if t.root != pager.NoPage {
			return st, errors.Wrapf(ErrTreeInvariant, "empty tree with root %d", t.root)
		}
		return st, nil
	}

	v := &verifier{tree: t, stats: &st, seen: make(map[pager.PageID]bool)}
	if err := v.walk(t.root, 1, nil, nil); err != nil {
		return st, err
	}
	if v.lastLeafNext != pager.NoPage {
		return st, errors.Wrapf(ErrTreeInvariant, "last leaf %d links to %d", v.lastLeaf, v.lastLeafNext)
	}
	return st, nil
}

type verifier struct {
	tree  *Tree
	stats *Stats
	seen  map[pager.PageID]bool

	lastLeaf     pager.PageID
	lastLeafNext pager.PageID
	lastKey      int32
	haveKey      bool
}

// walk checks the subtree at id; lo and hi, when set, bound its keys inclusively.
func (v *verifier) walk(id pager.PageID, level int, lo, hi *int32) error {
	if !v.tree.validPage(id) {
		return errors.Wrapf(ErrTreeInvariant, "level %d points to page %d", level, id)
	}
	if v.seen[id] {
		return errors.Wrapf(ErrTreeInvariant, "page %d is reachable twice", id)
	}
	v.seen[id] = true

	if level == v.tree.height {
		return v.leaf(id, lo, hi)
	}

	var node InternalNode
	if err := node.ReadFrom(id, v.tree.store); err != nil {
		return err
	}
	v.stats.Internals++
	n := node.EntryCount()
	if n == 0 {
		return errors.Wrapf(ErrTreeInvariant, "internal page %d has no keys", id)
	}
	entries := node.Entries()
	for i, e := range entries {
		if i > 0 && e.Key < entries[i-1].Key {
			return errors.Wrapf(ErrTreeInvariant, "internal page %d keys out of order at slot %d", id, i)
		}
		if !within(e.Key, lo, hi) {
			return errors.Wrapf(ErrTreeInvariant, "internal page %d key %d outside parent bounds", id, e.Key)
		}
	}

	for c := 0; c <= n; c++ {
		clo, chi := lo, hi
		if c > 0 {
			clo = &entries[c-1].Key
		}
		if c < n {
			chi = &entries[c].Key
		}
		if err := v.walk(node.Child(c), level+1, clo, chi); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) leaf(id pager.PageID, lo, hi *int32) error {
	var leaf LeafNode
	if err := leaf.ReadFrom(id, v.tree.store); err != nil {
		return err
	}
	if v.stats.Leaves > 0 && v.lastLeafNext != id {
		return errors.Wrapf(ErrTreeInvariant, "leaf %d links to %d, expected %d", v.lastLeaf, v.lastLeafNext, id)
	}
	if leaf.EntryCount() == 0 {
		return errors.Wrapf(ErrTreeInvariant, "leaf %d is empty", id)
	}
	for _, e := range leaf.Entries() {
		if v.haveKey && e.Key < v.lastKey {
			return errors.Wrapf(ErrTreeInvariant, "leaf %d key %d follows %d", id, e.Key, v.lastKey)
		}
		if !within(e.Key, lo, hi) {
			return errors.Wrapf(ErrTreeInvariant, "leaf %d key %d outside parent bounds", id, e.Key)
		}
		v.lastKey, v.haveKey = e.Key, true
	}
	v.stats.Leaves++
	v.stats.Entries += leaf.EntryCount()
	v.lastLeaf, v.lastLeafNext = id, leaf.NextSibling()
	return nil
}

func within(k int32, lo, hi *int32) bool {
	return (lo == nil || k >= *lo) && (hi == nil || k <= *hi)
}

// Package memtree is a pointer-based, in-memory B+ tree. It shares the
// disk tree's routing rules and serves as its heap-resident baseline.
package memtree

import (
	"slices"
	"sort"

	"github.com/btree-query-bench/bptidx/dbms/index"
)

var _ index.Index = (*BPlusTree)(nil)

type BPlusNode struct {
	IsLeaf   bool
	Keys     []int32
	Refs     []index.RecordRef // Only populated if IsLeaf == true
	Children []*BPlusNode      // Only populated if IsLeaf == false
	Next     *BPlusNode        // Pointer to next leaf for Range scans
}

type BPlusTree struct {
	T    int // Minimum degree (t). Max keys = 2t-1
	Root *BPlusNode
	size int
}

func New(t int) *BPlusTree {
	if t < 2 {
		t = 2
	}
	return &BPlusTree{
		T:    t,
		Root: &BPlusNode{IsLeaf: true},
	}
}

// Len returns the number of stored entries.
func (bt *BPlusTree) Len() int { return bt.size }

// Height returns the number of levels, 1 for a lone leaf.
func (bt *BPlusTree) Height() int {
	h := 1
	for n := bt.Root; !n.IsLeaf; n = n.Children[0] {
		h++
	}
	return h
}

// --- GET (Point Query) ---

func (bt *BPlusTree) Get(key int32) ([]index.RecordRef, error) {
	var refs []index.RecordRef
	it := bt.scan(key, key)
	for it.Next() {
		refs = append(refs, it.ref)
	}
	return refs, nil
}

// findLeaf descends to the leftmost leaf that may hold key.
func (bt *BPlusTree) findLeaf(curr *BPlusNode, key int32) *BPlusNode {
	for !curr.IsLeaf {
		i := 0
		for i < len(curr.Keys) && key > curr.Keys[i] {
			i++
		}
		curr = curr.Children[i]
	}
	return curr
}

// --- INSERT ---

// Insert adds (key, ref); equal keys are kept in insertion order.
func (bt *BPlusTree) Insert(key int32, ref index.RecordRef) error {
	root := bt.Root
	// If root is full, tree grows in height
	if len(root.Keys) == (2*bt.T - 1) {
		newRoot := &BPlusNode{IsLeaf: false, Children: []*BPlusNode{root}}
		bt.splitChild(newRoot, 0)
		bt.Root = newRoot
	}
	bt.insertNonFull(bt.Root, key, ref)
	bt.size++
	return nil
}

func (bt *BPlusTree) insertNonFull(x *BPlusNode, k int32, ref index.RecordRef) {
	if x.IsLeaf {
		idx := upperBound(x.Keys, k)
		x.Keys = slices.Insert(x.Keys, idx, k)
		x.Refs = slices.Insert(x.Refs, idx, ref)
		return
	}
	i := upperBound(x.Keys, k)
	if len(x.Children[i].Keys) == (2*bt.T - 1) {
		bt.splitChild(x, i)
		if k >= x.Keys[i] {
			i++
		}
	}
	bt.insertNonFull(x.Children[i], k, ref)
}

func (bt *BPlusTree) splitChild(x *BPlusNode, i int) {
	t := bt.T
	y := x.Children[i]
	z := &BPlusNode{IsLeaf: y.IsLeaf}

	if y.IsLeaf {
		// The first key of the new leaf is copied to the parent.
		z.Keys = append([]int32{}, y.Keys[t-1:]...)
		z.Refs = append([]index.RecordRef{}, y.Refs[t-1:]...)
		z.Next = y.Next
		y.Next = z

		y.Keys = y.Keys[:t-1:t-1]
		y.Refs = y.Refs[:t-1:t-1]

		x.Keys = slices.Insert(x.Keys, i, z.Keys[0])
	} else {
		// The middle key moves to the parent and leaves both halves.
		z.Keys = append([]int32{}, y.Keys[t:]...)
		z.Children = append([]*BPlusNode{}, y.Children[t:]...)

		midKey := y.Keys[t-1]
		y.Keys = y.Keys[:t-1:t-1]
		y.Children = y.Children[:t:t]

		x.Keys = slices.Insert(x.Keys, i, midKey)
	}
	x.Children = slices.Insert(x.Children, i+1, z)
}

// upperBound returns the position after every key <= k.
func upperBound(keys []int32, k int32) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] > k })
}

// --- RANGE (The Iterator) ---

func (bt *BPlusTree) Range(start, end int32) (index.Iterator, error) {
	return bt.scan(start, end), nil
}

func (bt *BPlusTree) scan(start, end int32) *BPlusIterator {
	return &BPlusIterator{
		curr:  bt.findLeaf(bt.Root, start),
		start: start,
		end:   end,
	}
}

type BPlusIterator struct {
	curr       *BPlusNode
	i          int
	start, end int32
	key        int32
	ref        index.RecordRef
}

func (it *BPlusIterator) Next() bool {
	for it.curr != nil {
		for it.i < len(it.curr.Keys) {
			k := it.curr.Keys[it.i]
			if k > it.end {
				it.curr = nil
				return false
			}
			if k >= it.start {
				it.key = k
				it.ref = it.curr.Refs[it.i]
				it.i++
				return true
			}
			it.i++
		}
		// Follow the leaf chain
		it.curr = it.curr.Next
		it.i = 0
	}
	return false
}

func (it *BPlusIterator) Key() int32           { return it.key }
func (it *BPlusIterator) Ref() index.RecordRef { return it.ref }
func (it *BPlusIterator) Error() error         { return nil }
func (it *BPlusIterator) Close() error         { return nil }

func (bt *BPlusTree) Close() error { return nil }

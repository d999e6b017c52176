package bptree

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/index"
	"github.com/btree-query-bench/bptidx/dbms/index/btpage"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

// LeafEntry is one (key, record reference) slot of a leaf.
type LeafEntry struct {
	Key int32
	Ref index.RecordRef
}

// LeafNode is the in-memory form of a leaf page: a sorted, fixed-capacity
// array of entries and the page id of the next leaf in key order.
type LeafNode struct {
	entries [btpage.LeafCapacity]LeafEntry
	count   int
	next    pager.PageID
}

// EntryCount returns the number of occupied slots.
func (n *LeafNode) EntryCount() int { return n.count }

// Insert adds (key, ref) after every entry whose key is <= key, so equal keys
// keep their insertion order. It returns ErrNodeFull, leaving the node
// untouched, when the node is at capacity.
func (n *LeafNode) Insert(key int32, ref index.RecordRef) error {
	if n.count == btpage.LeafCapacity {
		return ErrNodeFull
	}
	pos := n.upperBound(key)
	copy(n.entries[pos+1:n.count+1], n.entries[pos:n.count])
	n.entries[pos] = LeafEntry{Key: key, Ref: ref}
	n.count++
	return nil
}

// InsertAndSplit inserts (key, ref) into a full node and moves the upper part
// of the resulting entries into sibling, which must be empty. The node keeps
// ceil(m/2) of the m entries. The returned separator is sibling's first key.
// Sibling pointers are left to the caller.
func (n *LeafNode) InsertAndSplit(key int32, ref index.RecordRef, sibling *LeafNode) (int32, error) {
	if sibling.count != 0 {
		return 0, ErrSiblingNotEmpty
	}
	if n.count < btpage.LeafCapacity {
		return 0, ErrNodeNotFull
	}

	var all [btpage.LeafCapacity + 1]LeafEntry
	pos := n.upperBound(key)
	copy(all[:pos], n.entries[:pos])
	all[pos] = LeafEntry{Key: key, Ref: ref}
	copy(all[pos+1:], n.entries[pos:n.count])

	total := n.count + 1
	mid := splitPoint(total)
	copy(n.entries[:mid], all[:mid])
	for i := mid; i < n.count; i++ {
		n.entries[i] = LeafEntry{}
	}
	n.count = mid

	copy(sibling.entries[:total-mid], all[mid:total])
	sibling.count = total - mid
	return sibling.entries[0].Key, nil
}

// Locate returns the slot of the first entry with key >= searchKey. If every
// key is smaller it returns (EntryCount(), ErrNotFound).
func (n *LeafNode) Locate(searchKey int32) (int, error) {
	slot := sort.Search(n.count, func(i int) bool { return n.entries[i].Key >= searchKey })
	if slot == n.count {
		return slot, ErrNotFound
	}
	return slot, nil
}

// ReadEntry returns the entry stored in slot.
func (n *LeafNode) ReadEntry(slot int) (int32, index.RecordRef, error) {
	if slot < 0 || slot >= n.count {
		return 0, index.RecordRef{}, errors.Wrapf(ErrSlotOutOfRange, "leaf slot %d of %d", slot, n.count)
	}
	e := n.entries[slot]
	return e.Key, e.Ref, nil
}

// NextSibling returns the next leaf's page id, or pager.NoPage for the last leaf.
func (n *LeafNode) NextSibling() pager.PageID { return n.next }

func (n *LeafNode) SetNextSibling(id pager.PageID) { n.next = id }

// Entries returns a copy of the occupied slots.
func (n *LeafNode) Entries() []LeafEntry {
	return append([]LeafEntry(nil), n.entries[:n.count]...)
}

// ReadFrom loads the node from page id of store.
func (n *LeafNode) ReadFrom(id pager.PageID, store PageStore) error {
	var p pager.Page
	if err := store.Read(id, &p); err != nil {
		return storageError(err, "read leaf page %d", id)
	}
	return n.decode(id, &p)
}

// WriteTo stores the node as page id of store.
func (n *LeafNode) WriteTo(id pager.PageID, store PageStore) error {
	var p pager.Page
	n.encode(&p)
	if err := store.Write(id, &p); err != nil {
		return storageError(err, "write leaf page %d", id)
	}
	return nil
}

func (n *LeafNode) encode(p *pager.Page) {
	btpage.Clear(p)
	btpage.SetNumEntries(p, n.count)
	for i := 0; i < n.count; i++ {
		e := n.entries[i]
		btpage.PutLeafEntry(p, i, e.Key, e.Ref.Page, e.Ref.Slot)
	}
	btpage.SetNextLeaf(p, n.next)
}

func (n *LeafNode) decode(id pager.PageID, p *pager.Page) error {
	count := btpage.NumEntries(p)
	if count > btpage.LeafCapacity {
		return errors.Wrapf(ErrCorruptPage, "leaf page %d claims %d entries", id, count)
	}
	*n = LeafNode{count: count, next: btpage.NextLeaf(p)}
	for i := 0; i < count; i++ {
		k, rp, rs := btpage.LeafEntry(p, i)
		n.entries[i] = LeafEntry{Key: k, Ref: index.RecordRef{Page: rp, Slot: rs}}
	}
	return nil
}

func (n *LeafNode) upperBound(key int32) int {
	return sort.Search(n.count, func(i int) bool { return n.entries[i].Key > key })
}

// splitPoint is the number of entries the left node keeps out of total.
// Leaf and internal splits share it.
func splitPoint(total int) int {
	return (total + 1) / 2
}

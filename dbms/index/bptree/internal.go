package bptree

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/index/btpage"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

// InternalEntry is one (key, child page) slot of an internal node. Every key
// in the child's subtree is >= Key.
type InternalEntry struct {
	Key   int32
	Child pager.PageID
}

// InternalNode is the in-memory form of an internal page. Children are
// numbered 0..EntryCount(): child 0 is the leading pointer and child i > 0 is
// the pointer of entry i-1.
type InternalNode struct {
	leading pager.PageID
	entries [btpage.InternalCapacity]InternalEntry
	count   int
}

// EntryCount returns the number of keys; the node has EntryCount()+1 children.
func (n *InternalNode) EntryCount() int { return n.count }

// Insert adds (key, child) after every entry whose key is <= key.
// It returns ErrNodeFull, leaving the node untouched, at capacity.
func (n *InternalNode) Insert(key int32, child pager.PageID) error {
	return n.insertAt(n.upperBound(key), key, child)
}

// InsertAndSplit inserts (key, child) into a full node and splits it with
// sibling, which must be empty. Of the m resulting entries the node keeps the
// first ceil(m/2); the next one is the median, whose key is returned for the
// parent and whose child becomes sibling's leading pointer. The median key is
// stored in neither node.
func (n *InternalNode) InsertAndSplit(key int32, child pager.PageID, sibling *InternalNode) (int32, error) {
	return n.insertAtAndSplit(n.upperBound(key), key, child, sibling)
}

// LocateChildPtr returns the child to descend into when looking for the first
// entry >= searchKey: the leading pointer if searchKey <= the first key,
// otherwise the child of the last entry whose key is < searchKey.
func (n *InternalNode) LocateChildPtr(searchKey int32) pager.PageID {
	return n.Child(n.lowerBound(searchKey))
}

// InitializeRoot resets the node to the single key between two children.
func (n *InternalNode) InitializeRoot(left pager.PageID, key int32, right pager.PageID) {
	*n = InternalNode{leading: left, count: 1}
	n.entries[0] = InternalEntry{Key: key, Child: right}
}

// LeadingChild returns the pointer that precedes the first key.
func (n *InternalNode) LeadingChild() pager.PageID { return n.leading }

// Child returns child i, 0 <= i <= EntryCount(), or pager.NoPage if out of range.
func (n *InternalNode) Child(i int) pager.PageID {
	switch {
	case i == 0:
		return n.leading
	case i > 0 && i <= n.count:
		return n.entries[i-1].Child
	default:
		return pager.NoPage
	}
}

// ReadEntry returns the key and child stored in slot.
func (n *InternalNode) ReadEntry(slot int) (int32, pager.PageID, error) {
	if slot < 0 || slot >= n.count {
		return 0, pager.NoPage, errors.Wrapf(ErrSlotOutOfRange, "internal slot %d of %d", slot, n.count)
	}
	e := n.entries[slot]
	return e.Key, e.Child, nil
}

// Entries returns a copy of the occupied slots.
func (n *InternalNode) Entries() []InternalEntry {
	return append([]InternalEntry(nil), n.entries[:n.count]...)
}

// ReadFrom loads the node from page id of store.
func (n *InternalNode) ReadFrom(id pager.PageID, store PageStore) error {
	var p pager.Page
	if err := store.Read(id, &p); err != nil {
		return storageError(err, "read internal page %d", id)
	}
	count := btpage.NumEntries(&p)
	if count > btpage.InternalCapacity {
		return errors.Wrapf(ErrCorruptPage, "internal page %d claims %d entries", id, count)
	}
	*n = InternalNode{leading: btpage.LeadingChild(&p), count: count}
	for i := 0; i < count; i++ {
		k, c := btpage.InternalEntry(&p, i)
		n.entries[i] = InternalEntry{Key: k, Child: c}
	}
	return nil
}

// WriteTo stores the node as page id of store.
func (n *InternalNode) WriteTo(id pager.PageID, store PageStore) error {
	var p pager.Page
	btpage.SetNumEntries(&p, n.count)
	btpage.SetLeadingChild(&p, n.leading)
	for i := 0; i < n.count; i++ {
		btpage.PutInternalEntry(&p, i, n.entries[i].Key, n.entries[i].Child)
	}
	if err := store.Write(id, &p); err != nil {
		return storageError(err, "write internal page %d", id)
	}
	return nil
}

// childForInsert returns the index of the child an insert of key descends
// into: the last child that may hold key, so equal keys stay in insertion
// order across leaves. A separator promoted out of that child belongs at the
// same index as an entry position.
func (n *InternalNode) childForInsert(key int32) int {
	return n.upperBound(key)
}

// insertAt places (key, child) at entry position pos, i.e. right after child pos.
func (n *InternalNode) insertAt(pos int, key int32, child pager.PageID) error {
	if n.count == btpage.InternalCapacity {
		return ErrNodeFull
	}
	copy(n.entries[pos+1:n.count+1], n.entries[pos:n.count])
	n.entries[pos] = InternalEntry{Key: key, Child: child}
	n.count++
	return nil
}

func (n *InternalNode) insertAtAndSplit(pos int, key int32, child pager.PageID, sibling *InternalNode) (int32, error) {
	if sibling.count != 0 {
		return 0, ErrSiblingNotEmpty
	}
	if n.count < btpage.InternalCapacity {
		return 0, ErrNodeNotFull
	}

	var all [btpage.InternalCapacity + 1]InternalEntry
	copy(all[:pos], n.entries[:pos])
	all[pos] = InternalEntry{Key: key, Child: child}
	copy(all[pos+1:], n.entries[pos:n.count])

	total := n.count + 1
	mid := splitPoint(total)
	median := all[mid]

	copy(n.entries[:mid], all[:mid])
	for i := mid; i < n.count; i++ {
		n.entries[i] = InternalEntry{}
	}
	n.count = mid

	sibling.leading = median.Child
	copy(sibling.entries[:total-mid-1], all[mid+1:total])
	sibling.count = total - mid - 1
	return median.Key, nil
}

func (n *InternalNode) lowerBound(key int32) int {
	return sort.Search(n.count, func(i int) bool { return n.entries[i].Key >= key })
}

func (n *InternalNode) upperBound(key int32) int {
	return sort.Search(n.count, func(i int) bool { return n.entries[i].Key > key })
}

// Package bptree implements a disk-resident B+ tree mapping int32 keys to
// record references.
//
// Leaves hold (key, record reference) entries and are chained left to right
// through their next pointer. Internal nodes hold a leading child pointer and
// (key, child) entries; the key of entry i is the smallest key reachable
// through its child. Page 0 of the index file stores the root page id and the
// tree height; every other page is a node whose kind follows from its depth.
//
// A Tree is not safe for concurrent use.
package bptree

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/index"
	"github.com/btree-query-bench/bptidx/dbms/index/btpage"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

const metaPage = pager.PageID(0)

var _ index.Index = (*Tree)(nil)

// Tree is the index core. height 0 means empty, 1 means the root is a leaf.
type Tree struct {
	store  PageStore
	log    *slog.Logger
	root   pager.PageID
	height int
}

// split reports that a node split while inserting: key must be added to the
// parent together with the new right sibling page. A nil *split means the
// insert was absorbed.
type split struct {
	key  int32
	page pager.PageID
}

// Open opens (mode pager.ModeWrite creates) the index file at path.
func Open(path string, mode pager.Mode, opts Options) (*Tree, error) {
	opts = opts.withDefaults()
	pg, err := pager.Open(path, mode, opts.CachePages)
	if err != nil {
		return nil, err
	}
	t, err := OpenStore(pg, opts)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}
	return t, nil
}

// OpenStore opens an index on an already opened page store. On an empty
// writable store page 0 is reserved for the metadata.
func OpenStore(store PageStore, opts Options) (*Tree, error) {
	opts = opts.withDefaults()
	t := &Tree{store: store, log: opts.Logger}

	if store.EndPageID() == 0 {
		if !store.ReadOnly() {
			if err := t.writeMeta(); err != nil {
				return nil, err
			}
		}
		t.log.Info("opened empty index", "pages", store.EndPageID())
		return t, nil
	}

	if err := t.readMeta(); err != nil {
		return nil, err
	}
	t.log.Info("opened index", "root", t.root, "height", t.height, "pages", store.EndPageID())
	return t, nil
}

// Close persists the root and height (unless read-only) and closes the store.
func (t *Tree) Close() error {
	var err error
	if !t.store.ReadOnly() {
		err = t.writeMeta()
	}
	if cerr := t.store.Close(); cerr != nil && err == nil {
		err = storageError(cerr, "close index")
	}
	t.log.Info("closed index", "root", t.root, "height", t.height)
	return err
}

// Height returns the number of levels; 0 for an empty tree.
func (t *Tree) Height() int { return t.height }

// RootPage returns the root's page id, pager.NoPage for an empty tree.
func (t *Tree) RootPage() pager.PageID { return t.root }

// ─── Insert ───────────────────────────────────────────────────────────────────

// Insert adds (key, ref). Duplicate keys are kept as separate entries in
// insertion order. A storage failure aborts the insert and may leave already
// written pages behind; nothing is rolled back.
func (t *Tree) Insert(key int32, ref index.RecordRef) error {
	if t.store.ReadOnly() {
		return pager.ErrReadOnly
	}

	if t.height == 0 {
		var leaf LeafNode
		if err := leaf.Insert(key, ref); err != nil {
			return err
		}
		id, err := t.allocate()
		if err != nil {
			return err
		}
		if err := leaf.WriteTo(id, t.store); err != nil {
			return err
		}
		t.root, t.height = id, 1
		t.log.Debug("created root leaf", "page", id)
		return nil
	}

	s, err := t.insertRec(t.root, 1, key, ref)
	if err != nil || s == nil {
		return err
	}

	var root InternalNode
	root.InitializeRoot(t.root, s.key, s.page)
	id, err := t.allocate()
	if err != nil {
		return err
	}
	if err := root.WriteTo(id, t.store); err != nil {
		return err
	}
	t.log.Debug("grew root", "old", t.root, "new", id, "key", s.key, "height", t.height+1)
	t.root = id
	t.height++
	return nil
}

// insertRec inserts into the subtree rooted at page id, which sits at level
// (1 = root). Leaves live at level t.height.
func (t *Tree) insertRec(id pager.PageID, level int, key int32, ref index.RecordRef) (*split, error) {
	if level == t.height {
		return t.insertLeaf(id, key, ref)
	}

	var node InternalNode
	if err := node.ReadFrom(id, t.store); err != nil {
		return nil, err
	}
	c := node.childForInsert(key)
	s, err := t.insertRec(node.Child(c), level+1, key, ref)
	if err != nil || s == nil {
		return nil, err
	}

	err = node.insertAt(c, s.key, s.page)
	if err == nil {
		return nil, node.WriteTo(id, t.store)
	}
	if !errors.Is(err, ErrNodeFull) {
		return nil, err
	}

	var sibling InternalNode
	mid, err := node.insertAtAndSplit(c, s.key, s.page, &sibling)
	if err != nil {
		return nil, err
	}
	sibID, err := t.allocate()
	if err != nil {
		return nil, err
	}
	if err := sibling.WriteTo(sibID, t.store); err != nil {
		return nil, err
	}
	if err := node.WriteTo(id, t.store); err != nil {
		return nil, err
	}
	t.log.Debug("split internal node", "page", id, "sibling", sibID, "median", mid, "level", level)
	return &split{key: mid, page: sibID}, nil
}

func (t *Tree) insertLeaf(id pager.PageID, key int32, ref index.RecordRef) (*split, error) {
	var leaf LeafNode
	if err := leaf.ReadFrom(id, t.store); err != nil {
		return nil, err
	}
	err := leaf.Insert(key, ref)
	if err == nil {
		return nil, leaf.WriteTo(id, t.store)
	}
	if !errors.Is(err, ErrNodeFull) {
		return nil, err
	}

	var sibling LeafNode
	sep, err := leaf.InsertAndSplit(key, ref, &sibling)
	if err != nil {
		return nil, err
	}
	sibID, err := t.allocate()
	if err != nil {
		return nil, err
	}
	sibling.SetNextSibling(leaf.NextSibling())
	leaf.SetNextSibling(sibID)
	if err := sibling.WriteTo(sibID, t.store); err != nil {
		return nil, err
	}
	if err := leaf.WriteTo(id, t.store); err != nil {
		return nil, err
	}
	t.log.Debug("split leaf", "page", id, "sibling", sibID, "separator", sep)
	return &split{key: sep, page: sibID}, nil
}

// ─── Lookup ───────────────────────────────────────────────────────────────────

// Locate returns a cursor on the first entry whose key is >= searchKey. When
// every key is smaller the cursor sits past the last entry and the first
// ReadForward reports ErrEndOfTree. An empty tree returns ErrEndOfTree.
func (t *Tree) Locate(searchKey int32) (Cursor, error) {
	if t.height == 0 {
		return Cursor{}, ErrEndOfTree
	}
	id := t.root
	for level := 1; level < t.height; level++ {
		var node InternalNode
		if err := node.ReadFrom(id, t.store); err != nil {
			return Cursor{}, err
		}
		id = node.LocateChildPtr(searchKey)
	}

	var leaf LeafNode
	if err := leaf.ReadFrom(id, t.store); err != nil {
		return Cursor{}, err
	}
	slot, err := leaf.Locate(searchKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Cursor{}, err
	}
	return Cursor{Page: id, Slot: slot}, nil
}

// ReadForward returns the entry under the cursor and advances it. A cursor
// at the end of its leaf first moves along the sibling chain. At the end of
// the last leaf ErrEndOfTree is returned and the cursor is left as it was.
func (t *Tree) ReadForward(c *Cursor) (int32, index.RecordRef, error) {
	if !t.validPage(c.Page) || c.Slot < 0 {
		return 0, index.RecordRef{}, errors.Wrapf(ErrInvalidCursor, "cursor %v, index has %d pages", *c, t.store.EndPageID())
	}

	var leaf LeafNode
	if err := leaf.ReadFrom(c.Page, t.store); err != nil {
		return 0, index.RecordRef{}, err
	}
	if c.Slot > leaf.EntryCount() {
		return 0, index.RecordRef{}, errors.Wrapf(ErrInvalidCursor, "cursor %v, leaf has %d entries", *c, leaf.EntryCount())
	}

	page, slot := c.Page, c.Slot
	for slot == leaf.EntryCount() {
		next := leaf.NextSibling()
		if next == pager.NoPage {
			return 0, index.RecordRef{}, ErrEndOfTree
		}
		if !t.validPage(next) {
			return 0, index.RecordRef{}, errors.Wrapf(ErrCorruptPage, "leaf %d links to page %d", page, next)
		}
		if err := leaf.ReadFrom(next, t.store); err != nil {
			return 0, index.RecordRef{}, err
		}
		page, slot = next, 0
	}

	key, ref, err := leaf.ReadEntry(slot)
	if err != nil {
		return 0, index.RecordRef{}, err
	}
	c.Page, c.Slot = page, slot+1
	return key, ref, nil
}

// Get returns all references stored under key in insertion order.
func (t *Tree) Get(key int32) ([]index.RecordRef, error) {
	c, err := t.Locate(key)
	if errors.Is(err, ErrEndOfTree) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var refs []index.RecordRef
	for {
		k, ref, err := t.ReadForward(&c)
		if errors.Is(err, ErrEndOfTree) || (err == nil && k != key) {
			return refs, nil
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
}

// Range returns an iterator over the entries with start <= key <= end.
func (t *Tree) Range(start, end int32) (index.Iterator, error) {
	c, err := t.Locate(start)
	if errors.Is(err, ErrEndOfTree) {
		return &RangeIterator{done: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &RangeIterator{tree: t, cur: c, end: end}, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func (t *Tree) validPage(id pager.PageID) bool {
	return id != metaPage && id < t.store.EndPageID()
}

func (t *Tree) allocate() (pager.PageID, error) {
	id, err := t.store.Allocate()
	if err != nil {
		return pager.NoPage, storageError(err, "allocate page")
	}
	return id, nil
}

func (t *Tree) writeMeta() error {
	var p pager.Page
	btpage.PutMeta(&p, t.root, t.height)
	if err := t.store.Write(metaPage, &p); err != nil {
		return storageError(err, "write meta page")
	}
	return nil
}

func (t *Tree) readMeta() error {
	var p pager.Page
	if err := t.store.Read(metaPage, &p); err != nil {
		return storageError(err, "read meta page")
	}
	t.root, t.height = btpage.MetaRoot(&p), btpage.MetaHeight(&p)
	if t.height > 0 && !t.validPage(t.root) {
		return errors.Wrapf(ErrCorruptPage, "meta page names root %d with height %d", t.root, t.height)
	}
	return nil
}

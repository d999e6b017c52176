package bptree

import (
	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/pager"
)

var (
	// ErrStorageIO is the mark carried by every failed page read, write or
	// allocation. Nothing in this package retries it.
	ErrStorageIO = pager.ErrStorageIO

	// ErrNodeFull is returned by a node insert when the node is at capacity.
	// The tree catches it and splits; it never escapes Tree.Insert.
	ErrNodeFull = errors.New("bptree: node full")

	// ErrNotFound is returned by LeafNode.Locate when every key is smaller
	// than the search key.
	ErrNotFound = errors.New("bptree: no entry at or after key")

	// ErrEndOfTree ends a forward scan. It is not a failure.
	ErrEndOfTree = errors.New("bptree: end of tree")

	ErrInvalidCursor   = errors.New("bptree: invalid cursor")
	ErrSlotOutOfRange  = errors.New("bptree: slot out of range")
	ErrSiblingNotEmpty = errors.New("bptree: split sibling is not empty")
	ErrNodeNotFull     = errors.New("bptree: split of a node that is not full")
	ErrCorruptPage     = errors.New("bptree: corrupt page")
	ErrTreeInvariant   = errors.New("bptree: tree invariant violated")
)

func storageError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrStorageIO)
}

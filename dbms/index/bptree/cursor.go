package bptree

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/index"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

// Cursor is a caller-held scan position: slot Slot of leaf page Page.
// Slot == the leaf's entry count means "continue with the next leaf".
type Cursor struct {
	Page pager.PageID
	Slot int
}

func (c Cursor) String() string {
	return fmt.Sprintf("(%d, %d)", c.Page, c.Slot)
}

// RangeIterator walks the leaf chain from a cursor up to an inclusive end key.
type RangeIterator struct {
	tree *Tree
	cur  Cursor
	end  int32
	key  int32
	ref  index.RecordRef
	err  error
	done bool
}

func (it *RangeIterator) Next() bool {
	if it.done {
		return false
	}
	k, ref, err := it.tree.ReadForward(&it.cur)
	if err != nil {
		if !errors.Is(err, ErrEndOfTree) {
			it.err = err
		}
		it.done = true
		return false
	}
	if k > it.end {
		it.done = true
		return false
	}
	it.key, it.ref = k, ref
	return true
}

func (it *RangeIterator) Key() int32           { return it.key }
func (it *RangeIterator) Ref() index.RecordRef { return it.ref }
func (it *RangeIterator) Error() error         { return it.err }
func (it *RangeIterator) Close() error         { it.done = true; return nil }

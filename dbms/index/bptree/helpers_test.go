package bptree

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/index"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

var errInjected = errors.New("injected disk failure")

// faultStore wraps a PageStore and fails reads or writes on demand.
type faultStore struct {
	PageStore
	failReads  bool
	failWrites bool
	writes     int
}

func (f *faultStore) Read(id pager.PageID, pg *pager.Page) error {
	if f.failReads {
		return errInjected
	}
	return f.PageStore.Read(id, pg)
}

func (f *faultStore) Write(id pager.PageID, pg *pager.Page) error {
	if f.failWrites {
		return errInjected
	}
	f.writes++
	return f.PageStore.Write(id, pg)
}

func (f *faultStore) Allocate() (pager.PageID, error) {
	if f.failWrites {
		return pager.NoPage, errInjected
	}
	return f.PageStore.Allocate()
}

func ref(i int) index.RecordRef {
	return index.RecordRef{Page: uint32(i / 9), Slot: uint32(i % 9)}
}

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.idx")
}

func openTree(t *testing.T, path string, mode pager.Mode) *Tree {
	t.Helper()
	tr, err := Open(path, mode, Options{})
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return tr
}

func mustInsert(t *testing.T, tr *Tree, key int32, r index.RecordRef) {
	t.Helper()
	if err := tr.Insert(key, r); err != nil {
		t.Fatalf("insert %d: %v", key, err)
	}
}

// scanAll reads every entry from the smallest key on.
func scanAll(t *testing.T, tr *Tree) []LeafEntry {
	t.Helper()
	c, err := tr.Locate(-1 << 31)
	if errors.Is(err, ErrEndOfTree) {
		return nil
	}
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	var out []LeafEntry
	for {
		k, r, err := tr.ReadForward(&c)
		if errors.Is(err, ErrEndOfTree) {
			return out
		}
		if err != nil {
			t.Fatalf("read forward at %v: %v", c, err)
		}
		out = append(out, LeafEntry{Key: k, Ref: r})
	}
}

func mustVerify(t *testing.T, tr *Tree) Stats {
	t.Helper()
	st, err := tr.Verify()
	if err != nil {
		t.Fatalf("verify: %+v", err)
	}
	return st
}

// Package recfile stores fixed-size (key, value) records in a paged heap file
// and addresses them by index.RecordRef.
//
// Page layout (little-endian):
//
//	[0:4]   record count
//	[4:...] RecordsPerPage slots of RecordSize bytes:
//	        int32 key | uint16 value length | MaxValueSize value bytes
package recfile

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/index"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

const (
	MaxValueSize   = 100
	RecordSize     = 4 + 2 + MaxValueSize
	RecordsPerPage = (pager.PageSize - 4) / RecordSize
)

var (
	ErrValueTooLarge = errors.New("recfile: value too large")
	ErrNoRecord      = errors.New("recfile: no such record")
)

// File is an append-only record file.
type File struct {
	pg *pager.Pager

	// tail page and its record count, cached so Append needs no read.
	tail      pager.PageID
	tailCount int
}

// Open opens the record file at path; ModeWrite creates it.
func Open(path string, mode pager.Mode, cachePages int) (*File, error) {
	pg, err := pager.Open(path, mode, cachePages)
	if err != nil {
		return nil, err
	}
	f := &File{pg: pg}
	if end := pg.EndPageID(); end > 0 {
		var p pager.Page
		if err := pg.Read(end-1, &p); err != nil {
			_ = pg.Close()
			return nil, err
		}
		f.tail, f.tailCount = end-1, count(&p)
		if f.tailCount > RecordsPerPage {
			_ = pg.Close()
			return nil, errors.Newf("recfile: %s: tail page %d claims %d records", path, f.tail, f.tailCount)
		}
	}
	return f, nil
}

// Append stores (key, value) after the last record and returns its reference.
func (f *File) Append(key int32, value []byte) (index.RecordRef, error) {
	if len(value) > MaxValueSize {
		return index.RecordRef{}, errors.Wrapf(ErrValueTooLarge, "%d bytes, max %d", len(value), MaxValueSize)
	}

	var p pager.Page
	if f.pg.EndPageID() == 0 || f.tailCount == RecordsPerPage {
		id, err := f.pg.Allocate()
		if err != nil {
			return index.RecordRef{}, err
		}
		f.tail, f.tailCount = id, 0
	} else if err := f.pg.Read(f.tail, &p); err != nil {
		return index.RecordRef{}, err
	}

	slot := f.tailCount
	off := 4 + slot*RecordSize
	binary.LittleEndian.PutUint32(p[off:], uint32(key))
	binary.LittleEndian.PutUint16(p[off+4:], uint16(len(value)))
	copy(p[off+6:off+6+MaxValueSize], value)
	binary.LittleEndian.PutUint32(p[0:4], uint32(slot+1))

	if err := f.pg.Write(f.tail, &p); err != nil {
		return index.RecordRef{}, err
	}
	f.tailCount++
	return index.RecordRef{Page: uint32(f.tail), Slot: uint32(slot)}, nil
}

// Read returns the record ref points to.
func (f *File) Read(ref index.RecordRef) (int32, []byte, error) {
	if pager.PageID(ref.Page) >= f.pg.EndPageID() {
		return 0, nil, errors.Wrapf(ErrNoRecord, "page %d", ref.Page)
	}
	var p pager.Page
	if err := f.pg.Read(pager.PageID(ref.Page), &p); err != nil {
		return 0, nil, err
	}
	if int(ref.Slot) >= count(&p) {
		return 0, nil, errors.Wrapf(ErrNoRecord, "slot %d of page %d", ref.Slot, ref.Page)
	}
	off := 4 + int(ref.Slot)*RecordSize
	key := int32(binary.LittleEndian.Uint32(p[off:]))
	n := int(binary.LittleEndian.Uint16(p[off+4:]))
	if n > MaxValueSize {
		return 0, nil, errors.Newf("recfile: record %d.%d has length %d", ref.Page, ref.Slot, n)
	}
	value := make([]byte, n)
	copy(value, p[off+6:off+6+n])
	return key, value, nil
}

// EndRef is the reference the next Append will return.
func (f *File) EndRef() index.RecordRef {
	if f.pg.EndPageID() == 0 || f.tailCount == RecordsPerPage {
		return index.RecordRef{Page: uint32(f.pg.EndPageID())}
	}
	return index.RecordRef{Page: uint32(f.tail), Slot: uint32(f.tailCount)}
}

// Size returns the file size in bytes.
func (f *File) Size() int64 {
	return int64(f.pg.EndPageID()) * pager.PageSize
}

func (f *File) Close() error {
	return f.pg.Close()
}

func count(p *pager.Page) int {
	return int(binary.LittleEndian.Uint32(p[0:4]))
}

// Package pager implements a file of fixed-size pages.
//
// Page ids are dense: the file holds pages [0, EndPageID()) and a page is
// allocated by extending the file by one zeroed block. The pager keeps no
// header of its own, so every page, page 0 included, belongs to the caller.
package pager

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
)

const (
	PageSize = 1024

	// NoPage is never a valid node page: page 0 holds the caller's metadata.
	NoPage = PageID(0)
)

// PageID names a page by its position in the file.
type PageID uint32

// Page is a raw block read from or written to disk.
type Page [PageSize]byte

// Mode selects how the file is opened.
type Mode byte

const (
	ModeRead  Mode = 'r'
	ModeWrite Mode = 'w' // creates the file if it does not exist
)

var (
	// ErrStorageIO marks every failed read, write or sync of the underlying file.
	ErrStorageIO = errors.New("pager: storage i/o error")
	// ErrReadOnly is returned by mutating calls on a pager opened in ModeRead.
	ErrReadOnly = errors.New("pager: opened read-only")
	// ErrClosed is returned by any call after Close.
	ErrClosed = errors.New("pager: closed")
)

// Pager manages a file of fixed-size pages and optionally caches recently
// used ones. It is not safe for concurrent mutation.
type Pager struct {
	file    *os.File
	mode    Mode
	cache   *ristretto.Cache[uint64, *Page]
	endPage PageID
}

// Open opens the paged file at path. In ModeWrite a missing file is created.
// cachePages is the number of pages to keep in memory; 0 disables caching.
func Open(path string, mode Mode, cachePages int) (*Pager, error) {
	flags := os.O_RDONLY
	switch mode {
	case ModeRead:
	case ModeWrite:
		flags = os.O_RDWR | os.O_CREATE
	default:
		return nil, errors.Newf("pager: unknown open mode %q", rune(mode))
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, ioError(err, "pager open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioError(err, "pager stat %s", path)
	}
	if info.Size()%PageSize != 0 {
		_ = f.Close()
		return nil, errors.Newf("pager: %s has size %d, not a multiple of %d", path, info.Size(), PageSize)
	}

	p := &Pager{
		file:    f,
		mode:    mode,
		endPage: PageID(info.Size() / PageSize),
	}
	if cachePages > 0 {
		p.cache, err = ristretto.NewCache(&ristretto.Config[uint64, *Page]{
			NumCounters:        int64(cachePages) * 10,
			MaxCost:            int64(cachePages),
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "pager: create page cache")
		}
	}
	return p, nil
}

// Read copies page id into pg.
func (p *Pager) Read(id PageID, pg *Page) error {
	if p.file == nil {
		return ErrClosed
	}
	if id >= p.endPage {
		return errors.Mark(errors.Newf("pager: read page %d beyond end %d", id, p.endPage), ErrStorageIO)
	}
	if p.cache != nil {
		if cached, ok := p.cache.Get(uint64(id)); ok {
			*pg = *cached
			return nil
		}
	}
	if _, err := p.file.ReadAt(pg[:], p.offset(id)); err != nil {
		return ioError(err, "pager: read page %d", id)
	}
	p.remember(id, pg)
	return nil
}

// Write stores pg as page id. Writing at EndPageID() extends the file by one page.
func (p *Pager) Write(id PageID, pg *Page) error {
	if p.file == nil {
		return ErrClosed
	}
	if p.mode != ModeWrite {
		return ErrReadOnly
	}
	if id > p.endPage {
		return errors.Mark(errors.Newf("pager: write page %d leaves a gap after end %d", id, p.endPage), ErrStorageIO)
	}
	if _, err := p.file.WriteAt(pg[:], p.offset(id)); err != nil {
		if p.cache != nil {
			p.cache.Del(uint64(id))
		}
		return ioError(err, "pager: write page %d", id)
	}
	if id == p.endPage {
		p.endPage++
	}
	p.remember(id, pg)
	return nil
}

// Allocate reserves a new zeroed page at the end of the file and returns its id.
func (p *Pager) Allocate() (PageID, error) {
	id := p.endPage
	var blank Page
	if err := p.Write(id, &blank); err != nil {
		return 0, err
	}
	return id, nil
}

// EndPageID is the id the next allocated page will get, i.e. the page count.
func (p *Pager) EndPageID() PageID {
	return p.endPage
}

// ReadOnly reports whether the pager was opened in ModeRead.
func (p *Pager) ReadOnly() bool {
	return p.mode != ModeWrite
}

// Sync flushes written pages to stable storage.
func (p *Pager) Sync() error {
	if p.file == nil {
		return ErrClosed
	}
	if p.mode != ModeWrite {
		return nil
	}
	if err := p.file.Sync(); err != nil {
		return ioError(err, "pager: sync")
	}
	return nil
}

// Close syncs and closes the underlying file. Closing twice is a no-op.
func (p *Pager) Close() error {
	if p.file == nil {
		return nil
	}
	if p.cache != nil {
		p.cache.Close()
		p.cache = nil
	}
	err := p.Sync()
	if cerr := p.file.Close(); cerr != nil && err == nil {
		err = ioError(cerr, "pager: close")
	}
	p.file = nil
	return err
}

// --- internal helpers ---

func (p *Pager) offset(id PageID) int64 {
	return int64(id) * PageSize
}

// remember caches a private copy of pg. Wait drains ristretto's set buffer so
// a later write of the same page can never be overtaken by this one.
func (p *Pager) remember(id PageID, pg *Page) {
	if p.cache == nil {
		return
	}
	cp := new(Page)
	*cp = *pg
	p.cache.Set(uint64(id), cp, 1)
	p.cache.Wait()
}

func ioError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrStorageIO)
}

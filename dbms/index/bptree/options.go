package bptree

import (
	"log/slog"

	"github.com/btree-query-bench/bptidx/dbms/pager"
)

// PageStore is the paged storage the tree runs on. *pager.Pager implements it.
type PageStore interface {
	Read(id pager.PageID, pg *pager.Page) error
	Write(id pager.PageID, pg *pager.Page) error
	Allocate() (pager.PageID, error)
	EndPageID() pager.PageID
	ReadOnly() bool
	Close() error
}

var _ PageStore = (*pager.Pager)(nil)

// Options configures a Tree.
type Options struct {
	// CachePages is the number of pages the pager keeps in memory.
	// Default: 64. A negative value disables the cache. Ignored by OpenStore.
	CachePages int

	// Logger receives split and root growth events at debug level.
	// Default: discards everything.
	Logger *slog.Logger
}

// DefaultOptions returns the default tree options.
func DefaultOptions() Options {
	return Options{
		CachePages: 64,
		Logger:     slog.New(slog.DiscardHandler),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CachePages < 0 {
		o.CachePages = 0
	} else if o.CachePages == 0 {
		o.CachePages = d.CachePages
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Package index holds the types shared by every index implementation.
package index

// RecordRef locates a record in the record store. Indexes store and return it
// without interpreting either field.
type RecordRef struct {
	Page uint32
	Slot uint32
}

// Index is the common interface for all implementations.
type Index interface {
	Insert(key int32, ref RecordRef) error
	// Get returns every reference stored under key, in insertion order.
	Get(key int32) ([]RecordRef, error)
	// Range iterates over [start, end] inclusive in key order.
	Range(start, end int32) (Iterator, error)
	Close() error
}

// Iterator allows scanning over a range of entries.
type Iterator interface {
	Next() bool
	Key() int32
	Ref() RecordRef
	Error() error
	Close() error
}

// Package memindex is an in-memory index kept as a sorted slice. It is the
// baseline in benchmarks and the reference the disk indexes are checked
// against in tests.
package memindex

import (
	"sort"

	"github.com/btree-query-bench/bptidx/dbms/index"
)

var _ index.Index = (*MemIndex)(nil)

type Data struct {
	Key int32
	Ref index.RecordRef
}

// MemIndex holds its entries sorted by key; equal keys stay in insertion order.
type MemIndex struct {
	Data []Data
}

func New() *MemIndex {
	return &MemIndex{
		Data: make([]Data, 0),
	}
}

func (m *MemIndex) Insert(key int32, ref index.RecordRef) error {
	i := m.upperBound(key)
	m.Data = append(m.Data, Data{})
	copy(m.Data[i+1:], m.Data[i:])
	m.Data[i] = Data{Key: key, Ref: ref}
	return nil
}

func (m *MemIndex) Get(key int32) ([]index.RecordRef, error) {
	var refs []index.RecordRef
	for i := m.lowerBound(key); i < len(m.Data) && m.Data[i].Key == key; i++ {
		refs = append(refs, m.Data[i].Ref)
	}
	return refs, nil
}

func (m *MemIndex) Range(start, end int32) (index.Iterator, error) {
	return &Iterator{
		data: m.Data,
		cur:  m.lowerBound(start) - 1,
		end:  end,
	}, nil
}

func (m *MemIndex) Len() int     { return len(m.Data) }
func (m *MemIndex) Close() error { return nil }

func (m *MemIndex) lowerBound(key int32) int {
	return sort.Search(len(m.Data), func(i int) bool { return m.Data[i].Key >= key })
}

func (m *MemIndex) upperBound(key int32) int {
	return sort.Search(len(m.Data), func(i int) bool { return m.Data[i].Key > key })
}

// Iterator walks a snapshot of the slice; later inserts are not seen.
type Iterator struct {
	data []Data
	cur  int
	end  int32
}

func (it *Iterator) Next() bool {
	it.cur++
	return it.cur < len(it.data) && it.data[it.cur].Key <= it.end
}

func (it *Iterator) Key() int32           { return it.data[it.cur].Key }
func (it *Iterator) Ref() index.RecordRef { return it.data[it.cur].Ref }
func (it *Iterator) Error() error         { return nil }
func (it *Iterator) Close() error         { return nil }

// Package btpage provides the on-disk page layouts of the B+ tree index.
//
// Meta page (page 0):
//
//	[0-3]   uint32  root page ID
//	[4-7]   uint32  tree height (0 = empty)
//
// Leaf page:
//
//	[0-3]       uint32  number of entries
//	[4+12*i]    entry i: int32 key, uint32 record page, uint32 record slot
//	[1020-1023] uint32  next leaf page ID (pager.NoPage = last leaf)
//
// Internal page:
//
//	[0-3]     uint32  number of entries
//	[4-7]     uint32  leading child page ID
//	[8+8*i]   entry i: int32 key, uint32 child page ID
//
// Pages do not record whether they are leaves; the tree height decides.
// All integers are little-endian.
package btpage

import (
	"encoding/binary"

	"github.com/btree-query-bench/bptidx/dbms/pager"
)

const (
	PageIDSize = 4
	KeySize    = 4
	RefSize    = 8

	OffNumEntries = 0

	OffMetaRoot   = 0
	OffMetaHeight = 4

	OffLeafEntries = 4
	LeafEntrySize  = KeySize + RefSize
	OffNextLeaf    = pager.PageSize - PageIDSize

	OffLeadingChild    = 4
	OffInternalEntries = 8
	InternalEntrySize  = KeySize + PageIDSize

	LeafCapacity     = (pager.PageSize - OffLeafEntries - PageIDSize) / LeafEntrySize
	InternalCapacity = (pager.PageSize - OffInternalEntries) / InternalEntrySize
)

// Clear zeroes the whole page.
func Clear(p *pager.Page) {
	*p = pager.Page{}
}

func NumEntries(p *pager.Page) int {
	return int(binary.LittleEndian.Uint32(p[OffNumEntries : OffNumEntries+4]))
}

func SetNumEntries(p *pager.Page, n int) {
	binary.LittleEndian.PutUint32(p[OffNumEntries:OffNumEntries+4], uint32(n))
}

// ─── Meta ─────────────────────────────────────────────────────────────────────

func MetaRoot(p *pager.Page) pager.PageID {
	return pager.PageID(binary.LittleEndian.Uint32(p[OffMetaRoot : OffMetaRoot+4]))
}

func MetaHeight(p *pager.Page) int {
	return int(binary.LittleEndian.Uint32(p[OffMetaHeight : OffMetaHeight+4]))
}

func PutMeta(p *pager.Page, root pager.PageID, height int) {
	binary.LittleEndian.PutUint32(p[OffMetaRoot:OffMetaRoot+4], uint32(root))
	binary.LittleEndian.PutUint32(p[OffMetaHeight:OffMetaHeight+4], uint32(height))
}

// ─── Leaf ─────────────────────────────────────────────────────────────────────

func leafEntryOff(i int) int { return OffLeafEntries + i*LeafEntrySize }

func LeafEntry(p *pager.Page, i int) (key int32, refPage, refSlot uint32) {
	o := leafEntryOff(i)
	key = int32(binary.LittleEndian.Uint32(p[o : o+4]))
	refPage = binary.LittleEndian.Uint32(p[o+4 : o+8])
	refSlot = binary.LittleEndian.Uint32(p[o+8 : o+12])
	return
}

func PutLeafEntry(p *pager.Page, i int, key int32, refPage, refSlot uint32) {
	o := leafEntryOff(i)
	binary.LittleEndian.PutUint32(p[o:o+4], uint32(key))
	binary.LittleEndian.PutUint32(p[o+4:o+8], refPage)
	binary.LittleEndian.PutUint32(p[o+8:o+12], refSlot)
}

func NextLeaf(p *pager.Page) pager.PageID {
	return pager.PageID(binary.LittleEndian.Uint32(p[OffNextLeaf : OffNextLeaf+4]))
}

func SetNextLeaf(p *pager.Page, id pager.PageID) {
	binary.LittleEndian.PutUint32(p[OffNextLeaf:OffNextLeaf+4], uint32(id))
}

// ─── Internal ─────────────────────────────────────────────────────────────────

func internalEntryOff(i int) int { return OffInternalEntries + i*InternalEntrySize }

func LeadingChild(p *pager.Page) pager.PageID {
	return pager.PageID(binary.LittleEndian.Uint32(p[OffLeadingChild : OffLeadingChild+4]))
}

func SetLeadingChild(p *pager.Page, id pager.PageID) {
	binary.LittleEndian.PutUint32(p[OffLeadingChild:OffLeadingChild+4], uint32(id))
}

func InternalEntry(p *pager.Page, i int) (key int32, child pager.PageID) {
	o := internalEntryOff(i)
	key = int32(binary.LittleEndian.Uint32(p[o : o+4]))
	child = pager.PageID(binary.LittleEndian.Uint32(p[o+4 : o+8]))
	return
}

func PutInternalEntry(p *pager.Page, i int, key int32, child pager.PageID) {
	o := internalEntryOff(i)
	binary.LittleEndian.PutUint32(p[o:o+4], uint32(key))
	binary.LittleEndian.PutUint32(p[o+4:o+8], uint32(child))
}

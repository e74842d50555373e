package oolong

import (
	"iter"
	"sync/atomic"
)

// pageTable is the page directory: a flat array with one slot per
// granule of the reserved heap extent. Lookups are lock-free; a
// concurrent lookup racing an insert or remove sees either the old
// entry or nil, never a half-updated state. Entries are inserted when
// a page is allocated and removed before the page is returned to the
// page source, so the directory never holds a dangling entry.
type pageTable struct {
	granules []atomic.Pointer[Page]
}

func newPageTable(maxCapacity uint64) *pageTable {
	return &pageTable{
		granules: make([]atomic.Pointer[Page], maxCapacity/GranuleSize),
	}
}

func (t *pageTable) index(addr Address) int {
	a := addr.untagged()
	if a < heapBase {
		return -1
	}
	i := granuleIndex(a)
	if i >= len(t.granules) {
		return -1
	}
	return i
}

// get returns the page covering addr, or nil.
func (t *pageTable) get(addr Address) *Page {
	i := t.index(addr)
	if i < 0 {
		return nil
	}
	return t.granules[i].Load()
}

func (t *pageTable) insert(p *Page) {
	first := granuleIndex(p.start)
	for i := range int(p.size / GranuleSize) {
		t.granules[first+i].Store(p)
	}
}

func (t *pageTable) remove(p *Page) {
	first := granuleIndex(p.start)
	for i := range int(p.size / GranuleSize) {
		t.granules[first+i].Store(nil)
	}
}

// pages yields every page in the directory exactly once. The walk is
// only coherent while page deletion is deferred or the world is
// stopped; otherwise a page may be yielded that is concurrently freed.
func (t *pageTable) pages() iter.Seq[*Page] {
	return func(yield func(*Page) bool) {
		for i := range t.granules {
			p := t.granules[i].Load()
			if p == nil {
				continue
			}
			// Yield a page only at its first granule.
			if granuleIndex(p.start) != i {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

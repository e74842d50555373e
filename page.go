package oolong

import (
	"fmt"
	"iter"
	"slices"
	"sync"
)

// PageType classifies a page by the object sizes it holds.
type PageType uint8

const (
	PageTypeSmall PageType = iota
	PageTypeMedium
	PageTypeLarge
)

func (t PageType) String() string {
	switch t {
	case PageTypeSmall:
		return "Small"
	case PageTypeMedium:
		return "Medium"
	case PageTypeLarge:
		return "Large"
	}
	return fmt.Sprintf("PageType(%d)", uint8(t))
}

// PageID is a stable page identity, assigned by the page source and
// never reused. Structures that outlive a page (forwarding records,
// statistics) key on it rather than holding owning references.
type PageID uint64

// AllocFlags modify page allocation behavior.
type AllocFlags uint8

const (
	// AllocNonBlocking makes a failed allocation return immediately
	// without counting as an allocation stall.
	AllocNonBlocking AllocFlags = 1 << iota

	// AllocWorker marks an allocation made by a GC worker, e.g. a
	// relocation target page.
	AllocWorker
)

// Object is the payload of a heap allocation: its size in bytes and
// the reference fields it carries.
type Object struct {
	Size uint64
	Refs []Address
}

type objectSlot struct {
	offset uint64
	obj    *Object
}

// Page is a contiguous heap region. While being filled it is owned by
// the object allocator; once retired it is owned by the page directory
// until it is reclaimed or relocated; freed pages belong to the page
// source.
//
// seqnum records the collection cycle the page was allocated under. A
// page is relocatable once a newer cycle has started (seqnum < global),
// meaning every live object in it has had a chance to be marked. Mark
// state is a livemap stamped with the cycle it belongs to; a stale
// stamp means "nothing marked this cycle".
type Page struct {
	id     PageID
	typ    PageType
	start  Address
	size   uint64
	seqnum uint32

	mu         sync.Mutex
	view       View
	top        uint64
	slots      []objectSlot
	allocating bool

	liveSeq     uint32
	liveOffsets Set[uint64]
	liveBytes   uint64
}

func (p *Page) ID() PageID     { return p.id }
func (p *Page) Type() PageType { return p.typ }
func (p *Page) Start() Address { return p.start }
func (p *Page) Size() uint64   { return p.size }
func (p *Page) End() Address   { return p.start + Address(p.size) }

func (p *Page) IsAllocating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocating
}

func (p *Page) setAllocating(allocating bool) {
	p.mu.Lock()
	p.allocating = allocating
	p.mu.Unlock()
}

// resetForReuse prepares a page pulled off the free list for a new
// life under a fresh identity.
func (p *Page) resetForReuse(id PageID, typ PageType) {
	p.mu.Lock()
	p.id = id
	p.typ = typ
	p.top = 0
	p.slots = p.slots[:0]
	p.allocating = true
	p.liveSeq = 0
	p.liveOffsets.Clear()
	p.liveBytes = 0
	p.mu.Unlock()
}

func alignUp(size uint64) uint64 {
	const objectAlignment = 8
	return (size + objectAlignment - 1) &^ (objectAlignment - 1)
}

// Alloc bump-allocates obj into the page and returns its address, or
// Nil if it does not fit.
func (p *Page) Alloc(obj *Object) Address {
	size := alignUp(obj.Size)
	if size == 0 {
		size = alignUp(1)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.top+size > p.size {
		return Nil
	}
	addr := p.start + Address(p.top)
	p.slots = append(p.slots, objectSlot{offset: p.top, obj: obj})
	p.top += size
	return addr
}

// Top returns the allocated extent of the page.
func (p *Page) Top() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top
}

// Remaining returns the unallocated tail of the page.
func (p *Page) Remaining() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size - p.top
}

// IsIn reports whether addr points into the allocated extent of the
// page. Addresses carrying the finalizable tag are never in a heap
// view.
func (p *Page) IsIn(addr Address) bool {
	if addr.IsFinalizable() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return addr >= p.start && addr < p.start+Address(p.top)
}

// slotIndex returns the index of the slot whose extent contains addr,
// or -1. Caller holds p.mu.
func (p *Page) slotIndex(addr Address) int {
	if addr < p.start || addr >= p.start+Address(p.top) {
		return -1
	}
	offset := uint64(addr - p.start)
	// Slots are ordered by offset; find the last slot starting at or
	// before the offset.
	i, found := slices.BinarySearchFunc(p.slots, offset, func(s objectSlot, off uint64) int {
		switch {
		case s.offset < off:
			return -1
		case s.offset > off:
			return 1
		}
		return 0
	})
	if !found {
		i--
	}
	if i < 0 || i >= len(p.slots) {
		return -1
	}
	s := p.slots[i]
	if offset >= s.offset+alignUp(s.obj.Size) {
		return -1
	}
	return i
}

// ObjectAt returns the object whose extent contains addr.
func (p *Page) ObjectAt(addr Address) (*Object, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.slotIndex(addr.untagged())
	if i < 0 {
		return nil, false
	}
	return p.slots[i].obj, true
}

// BlockStart returns the start address of the block containing addr,
// or Nil if addr points into no block.
func (p *Page) BlockStart(addr Address) Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.slotIndex(addr.untagged())
	if i < 0 {
		return Nil
	}
	return p.start + Address(p.slots[i].offset)
}

// BlockSize returns the size of the block containing addr.
func (p *Page) BlockSize(addr Address) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.slotIndex(addr.untagged())
	if i < 0 {
		return 0
	}
	return alignUp(p.slots[i].obj.Size)
}

// BlockIsObj reports whether addr is the start of an allocated object.
func (p *Page) BlockIsObj(addr Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.slotIndex(addr.untagged())
	return i >= 0 && p.slots[i].offset == uint64(addr.untagged()-p.start)
}

// markObject records addr's object as live under the given cycle.
// It reports whether the object was newly marked.
func (p *Page) markObject(addr Address, global uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.slotIndex(addr.untagged())
	if i < 0 {
		return false
	}
	if p.liveSeq != global {
		// First mark of this cycle resets the livemap.
		p.liveSeq = global
		p.liveOffsets.Clear()
		p.liveBytes = 0
	}
	offset := p.slots[i].offset
	if p.liveOffsets.Has(offset) {
		return false
	}
	p.liveOffsets.Add(offset)
	p.liveBytes += alignUp(p.slots[i].obj.Size)
	return true
}

// isObjectMarked reports whether addr's object was marked under the
// given cycle.
func (p *Page) isObjectMarked(addr Address, global uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.liveSeq != global {
		return false
	}
	i := p.slotIndex(addr.untagged())
	return i >= 0 && p.liveOffsets.Has(p.slots[i].offset)
}

// IsMarked reports whether any object in the page was marked under
// the given cycle.
func (p *Page) IsMarked(global uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveSeq == global && p.liveOffsets.Len() > 0
}

// isRelocatable reports whether the page predates the given cycle and
// therefore has complete liveness information.
func (p *Page) isRelocatable(global uint32) bool {
	return p.seqnum < global
}

// live returns the marked object count and byte total for the cycle.
func (p *Page) live(global uint32) (objects int, bytes uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.liveSeq != global {
		return 0, 0
	}
	return p.liveOffsets.Len(), p.liveBytes
}

// objects yields every allocated object with its address.
func (p *Page) objects() iter.Seq2[Address, *Object] {
	return func(yield func(Address, *Object) bool) {
		p.mu.Lock()
		slots := slices.Clone(p.slots)
		p.mu.Unlock()
		for _, s := range slots {
			if !yield(p.start+Address(s.offset), s.obj) {
				return
			}
		}
	}
}

// markedObjects yields the objects marked live under the given cycle,
// in address order.
func (p *Page) markedObjects(global uint32) iter.Seq2[Address, *Object] {
	return func(yield func(Address, *Object) bool) {
		p.mu.Lock()
		if p.liveSeq != global {
			p.mu.Unlock()
			return
		}
		type marked struct {
			offset uint64
			obj    *Object
		}
		var live []marked
		for _, s := range p.slots {
			if p.liveOffsets.Has(s.offset) {
				live = append(live, marked{s.offset, s.obj})
			}
		}
		p.mu.Unlock()
		for _, m := range live {
			if !yield(p.start+Address(m.offset), m.obj) {
				return
			}
		}
	}
}

func (p *Page) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("page %d %s [0x%x-0x%x) top=%d live=%d",
		p.id, p.typ, uint64(p.start), uint64(p.start)+p.size, p.top, p.liveOffsets.Len())
}

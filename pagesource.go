package oolong

import (
	"slices"
	"sync"
)

// PageSource hands out pages from a reserved heap extent and takes
// them back, keeping the capacity accounting: used, allocated,
// reclaimed and the used watermarks for the current cycle.
//
// Deletion can be deferred: while one or more deferred-delete tokens
// are outstanding, freed pages are queued instead of returned to the
// free list, so a concurrent directory walk can touch a page without
// racing its reuse. Accounting still happens at free time; only the
// reuse is deferred. The queue drains when the token count returns to
// zero.
type PageSource struct {
	mu     sync.Mutex
	top    Address
	limit  Address
	free   []*Page
	nextID PageID

	min     uint64
	max     uint64
	softMax uint64

	capacity  uint64
	used      uint64
	usedHigh  uint64
	usedLow   uint64
	allocated uint64
	reclaimed uint64
	stalls    uint64

	noDelete int
	deferred []*Page
}

func newPageSource(min, max, softMax uint64) *PageSource {
	return &PageSource{
		top:     heapBase,
		limit:   heapBase + Address(max),
		nextID:  1,
		min:     min,
		max:     max,
		softMax: softMax,
	}
}

// IsInitialized reports whether the source has a usable extent.
func (s *PageSource) IsInitialized() bool {
	return s.max > 0 && s.max%GranuleSize == 0
}

// Alloc returns a page of the given type and size, or nil if the heap
// is out of memory. Size must be a nonzero granule multiple.
func (s *PageSource) Alloc(typ PageType, size uint64, flags AllocFlags) *Page {
	if size == 0 || size%GranuleSize != 0 {
		fatalf("invalid page size %d", size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.takeFree(size)
	if p != nil {
		p.resetForReuse(s.nextID, typ)
		s.nextID++
	} else {
		p = s.carve(typ, size)
	}
	if p == nil {
		if flags&AllocNonBlocking == 0 {
			s.stalls++
		}
		return nil
	}

	s.used += size
	s.allocated += size
	if s.used > s.usedHigh {
		s.usedHigh = s.used
	}
	return p
}

// takeFree reuses a freed page of exactly the requested size. Caller
// holds s.mu.
func (s *PageSource) takeFree(size uint64) *Page {
	i := slices.IndexFunc(s.free, func(p *Page) bool { return p.size == size })
	if i < 0 {
		return nil
	}
	p := s.free[i]
	s.free = slices.Delete(s.free, i, i+1)
	return p
}

// carve cuts a fresh address range off the top of the extent. Caller
// holds s.mu.
func (s *PageSource) carve(typ PageType, size uint64) *Page {
	if uint64(s.top-heapBase)+size > s.max {
		return nil
	}
	p := &Page{
		typ:        typ,
		start:      s.top,
		size:       size,
		allocating: true,
	}
	s.top += Address(size)
	s.capacity += size
	p.id = s.nextID
	s.nextID++
	return p
}

// Free returns a page to the source. reclaimed distinguishes garbage
// collection from an allocation undo.
func (s *PageSource) Free(p *Page, reclaimed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.used -= p.size
	if s.used < s.usedLow {
		s.usedLow = s.used
	}
	if reclaimed {
		s.reclaimed += p.size
	}

	if s.noDelete > 0 {
		s.deferred = append(s.deferred, p)
		return
	}
	s.free = append(s.free, p)
}

// EnableDeferredDelete takes a deferred-delete token.
func (s *PageSource) EnableDeferredDelete() {
	s.mu.Lock()
	s.noDelete++
	s.mu.Unlock()
}

// DisableDeferredDelete releases a token, draining the deferred queue
// when no tokens remain.
func (s *PageSource) DisableDeferredDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noDelete == 0 {
		fatalf("deferred delete not enabled")
	}
	s.noDelete--
	if s.noDelete == 0 {
		s.free = append(s.free, s.deferred...)
		s.deferred = nil
	}
}

// ResetStatistics resets the per-cycle counters and collapses the used
// watermarks onto the current used value.
func (s *PageSource) ResetStatistics() {
	s.mu.Lock()
	s.allocated = 0
	s.reclaimed = 0
	s.stalls = 0
	s.usedHigh = s.used
	s.usedLow = s.used
	s.mu.Unlock()
}

func (s *PageSource) MinCapacity() uint64     { return s.min }
func (s *PageSource) MaxCapacity() uint64     { return s.max }
func (s *PageSource) SoftMaxCapacity() uint64 { return s.softMax }

func (s *PageSource) Capacity() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

func (s *PageSource) Used() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *PageSource) Unused() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max - s.used
}

func (s *PageSource) Allocated() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocated
}

func (s *PageSource) Reclaimed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reclaimed
}

func (s *PageSource) UsedHigh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedHigh
}

func (s *PageSource) UsedLow() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedLow
}

// isAllocStalled reports whether any allocation has stalled since the
// last statistics reset.
func (s *PageSource) isAllocStalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stalls > 0
}

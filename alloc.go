package oolong

import "sync"

// Mutator is the handle an application thread uses to allocate and
// access heap objects. It carries the thread-local allocation buffer
// (a small page being bump-filled) and a local mark buffer fed by the
// write barrier during marking.
type Mutator struct {
	heap *Heap

	mu      sync.Mutex
	tlab    *Page
	markBuf []Address
}

// objectAllocator owns the mutator registry, the shared medium
// allocation page and the relocation target pages used by GC workers.
type objectAllocator struct {
	heap *Heap

	mu          sync.Mutex
	mutators    []*Mutator
	shared      *Page
	relocTarget map[PageType]*Page
}

func newObjectAllocator(h *Heap) *objectAllocator {
	return &objectAllocator{
		heap:        h,
		relocTarget: make(map[PageType]*Page),
	}
}

func (a *objectAllocator) newMutator() *Mutator {
	m := &Mutator{heap: a.heap}
	a.mu.Lock()
	a.mutators = append(a.mutators, m)
	a.mu.Unlock()
	return m
}

func (a *objectAllocator) all() []*Mutator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Mutator(nil), a.mutators...)
}

// used returns the bytes bump-allocated into live TLABs.
func (a *objectAllocator) used() uint64 {
	var total uint64
	for _, m := range a.all() {
		m.mu.Lock()
		if m.tlab != nil {
			m.tlab.mu.Lock()
			total += m.tlab.top
			m.tlab.mu.Unlock()
		}
		m.mu.Unlock()
	}
	return total
}

// remaining returns the free space left in the calling context's
// shared allocation page; used to size the next TLAB request.
func (a *objectAllocator) remaining() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shared == nil {
		return 0
	}
	return a.shared.Remaining()
}

// retireTLABs detaches every mutator's TLAB so no live object pointer
// stays hidden in an unflushed buffer. Runs inside the mark-start
// safepoint.
func (a *objectAllocator) retireTLABs() {
	for _, m := range a.all() {
		m.mu.Lock()
		if m.tlab != nil {
			m.tlab.setAllocating(false)
			m.tlab = nil
		}
		m.mu.Unlock()
	}
	a.mu.Lock()
	if a.shared != nil {
		a.shared.setAllocating(false)
		a.shared = nil
	}
	a.mu.Unlock()
}

// remapTLABs re-stamps live TLABs under the flipped address view.
// Runs inside the relocate-start safepoint.
func (a *objectAllocator) remapTLABs() {
	view := a.heap.View()
	for _, m := range a.all() {
		m.mu.Lock()
		if m.tlab != nil {
			m.tlab.mu.Lock()
			m.tlab.view = view
			m.tlab.mu.Unlock()
		}
		m.mu.Unlock()
	}
}

// retireRelocationTargets returns the relocation target pages to the
// directory's custody at the end of a relocation pass.
func (a *objectAllocator) retireRelocationTargets() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for typ, p := range a.relocTarget {
		p.setAllocating(false)
		delete(a.relocTarget, typ)
	}
}

// allocForRelocation allocates space for a relocated object, growing
// a worker-owned target page on demand. Returns Nil on OOM; the
// caller treats that as a per-page relocation failure, not an error.
func (a *objectAllocator) allocForRelocation(obj *Object, typ PageType) Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	pageSize := a.heap.cfg.SmallPageSize
	if typ == PageTypeMedium {
		pageSize = a.heap.cfg.MediumPageSize
	}
	if p := a.relocTarget[typ]; p != nil {
		if addr := p.Alloc(obj); addr != Nil {
			return addr
		}
		p.setAllocating(false)
		delete(a.relocTarget, typ)
	}
	p := a.heap.AllocPage(typ, pageSize, AllocWorker|AllocNonBlocking)
	if p == nil {
		return Nil
	}
	a.relocTarget[typ] = p
	return p.Alloc(obj)
}

// AllocObject allocates obj and returns its address, or Nil if the
// heap is out of memory.
func (m *Mutator) AllocObject(obj *Object) Address {
	h := m.heap
	h.stw.RLock()
	defer h.stw.RUnlock()

	size := alignUp(obj.Size)
	switch {
	case size <= h.cfg.smallObjectLimit():
		return m.allocSmall(obj)
	case size <= h.cfg.mediumObjectLimit():
		return h.allocator.allocShared(obj)
	default:
		return h.allocator.allocLarge(obj)
	}
}

func (m *Mutator) allocSmall(obj *Object) Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tlab != nil {
		if addr := m.tlab.Alloc(obj); addr != Nil {
			return addr
		}
		// TLAB full; retire it and take a fresh one.
		m.tlab.setAllocating(false)
		m.tlab = nil
	}
	p := m.heap.AllocPage(PageTypeSmall, m.heap.cfg.SmallPageSize, 0)
	if p == nil {
		m.heap.outOfMemory()
		return Nil
	}
	m.tlab = p
	return p.Alloc(obj)
}

func (a *objectAllocator) allocShared(obj *Object) Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shared != nil {
		if addr := a.shared.Alloc(obj); addr != Nil {
			return addr
		}
		a.shared.setAllocating(false)
		a.shared = nil
	}
	p := a.heap.AllocPage(PageTypeMedium, a.heap.cfg.MediumPageSize, 0)
	if p == nil {
		a.heap.outOfMemory()
		return Nil
	}
	a.shared = p
	return p.Alloc(obj)
}

func (a *objectAllocator) allocLarge(obj *Object) Address {
	size := alignUp(obj.Size)
	pageSize := (size + GranuleSize - 1) &^ (GranuleSize - 1)
	p := a.heap.AllocPage(PageTypeLarge, pageSize, 0)
	if p == nil {
		a.heap.outOfMemory()
		return Nil
	}
	addr := p.Alloc(obj)
	p.setAllocating(false)
	return addr
}

// Write stores val into the object's reference field. During marking
// the overwritten reference is recorded in the mutator's mark buffer
// (snapshot-at-the-beginning), so no reachable object is hidden from
// the marker by a concurrent overwrite.
func (m *Mutator) Write(obj Address, field int, val Address) {
	h := m.heap
	h.stw.RLock()
	defer h.stw.RUnlock()

	// Access barrier: always operate on the object's current home.
	obj = h.RemapAddress(obj.untagged())
	page := h.pageOf(obj)
	if page == nil {
		fatalf("write to non-heap address 0x%x", uint64(obj))
	}
	o, ok := page.ObjectAt(obj)
	if !ok || field >= len(o.Refs) {
		fatalf("write to invalid field %d of 0x%x", field, uint64(obj))
	}
	page.mu.Lock()
	old := o.Refs[field]
	o.Refs[field] = val
	page.mu.Unlock()

	if h.Phase() == PhaseMark && old != Nil {
		m.mu.Lock()
		m.markBuf = append(m.markBuf, old)
		m.mu.Unlock()
	}
}

// Read loads the object's reference field, healing it through the
// forwarding table during relocation.
func (m *Mutator) Read(obj Address, field int) Address {
	h := m.heap
	h.stw.RLock()
	defer h.stw.RUnlock()

	obj = h.RemapAddress(obj.untagged())
	page := h.pageOf(obj)
	if page == nil {
		fatalf("read from non-heap address 0x%x", uint64(obj))
	}
	o, ok := page.ObjectAt(obj)
	if !ok || field >= len(o.Refs) {
		fatalf("read from invalid field %d of 0x%x", field, uint64(obj))
	}
	page.mu.Lock()
	val := o.Refs[field]
	page.mu.Unlock()

	if h.Phase() == PhaseRelocate && val != Nil {
		if to := h.RemapAddress(val); to != val {
			page.mu.Lock()
			o.Refs[field] = to
			page.mu.Unlock()
			val = to
		}
	}
	return val
}

func (m *Mutator) takeMarkBuffer() []Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.markBuf
	m.markBuf = nil
	return buf
}

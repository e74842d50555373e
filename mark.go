package oolong

import "sync"

// Marker is the concurrent marking engine consumed by the heap. Start
// resets mark state and seeds the roots; Mark drives concurrent
// marking work and may be invoked repeatedly; End attempts to finish,
// returning false if work remains, in which case the caller resumes
// concurrent marking and retries. FlushAndFree drains one mutator's
// local mark buffer.
type Marker interface {
	Start()
	Mark()
	End() bool
	FlushAndFree(m *Mutator)
	IsInitialized() bool
}

// marker is the default marking engine: a shared mark stack drained in
// parallel by the worker pool. Newly reached addresses are remapped
// through any forwarding left over from the previous cycle before
// being marked, so stale pointers are healed as a side effect of
// marking.
type marker struct {
	heap *Heap

	mu    sync.Mutex
	stack []Address
}

func newMarker(h *Heap) *marker {
	return &marker{heap: h}
}

func (m *marker) IsInitialized() bool {
	return m.heap != nil
}

func (m *marker) Start() {
	m.mu.Lock()
	m.stack = m.stack[:0]
	m.mu.Unlock()
	m.push(m.heap.roots.snapshot()...)
}

func (m *marker) push(addrs ...Address) {
	m.mu.Lock()
	for _, a := range addrs {
		if a != Nil {
			m.stack = append(m.stack, a)
		}
	}
	m.mu.Unlock()
}

func (m *marker) pop() (Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return Nil, false
	}
	a := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return a, true
}

func (m *marker) Mark() {
	m.heap.workers.runParallel(newTask("MarkTask", func(worker int) {
		m.drain()
	}))
}

func (m *marker) drain() {
	for {
		addr, ok := m.pop()
		if !ok {
			return
		}
		m.markAndFollow(addr)
	}
}

func (m *marker) markAndFollow(addr Address) {
	addr = m.heap.RemapAddress(addr.untagged())
	page := m.heap.pageOf(addr)
	if page == nil {
		return
	}
	if !page.markObject(addr, m.heap.seq()) {
		return
	}
	obj, ok := page.ObjectAt(addr)
	if !ok {
		return
	}
	// Follow the fields, healing any stale reference through the
	// previous cycle's forwarding as we go.
	page.mu.Lock()
	refs := make([]Address, 0, len(obj.Refs))
	for i, ref := range obj.Refs {
		if ref == Nil {
			continue
		}
		if to := m.heap.RemapAddress(ref.untagged()); to != ref {
			obj.Refs[i] = to
			ref = to
		}
		refs = append(refs, ref)
	}
	page.mu.Unlock()
	m.push(refs...)
}

// End flushes every mutator's mark buffer and reports whether marking
// terminated. A false return leaves all mark state intact so that
// concurrent marking can resume.
func (m *marker) End() bool {
	for _, mut := range m.heap.allocator.all() {
		m.FlushAndFree(mut)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack) == 0
}

func (m *marker) FlushAndFree(mut *Mutator) {
	m.push(mut.takeMarkBuffer()...)
}

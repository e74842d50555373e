package oolong

import (
	"sync/atomic"
)

// Relocator evacuates the relocation set. Start remaps (and eagerly
// relocates) roots at the relocate-start safepoint; Relocate runs the
// concurrent copy pass and reports aggregate success. A false return
// is a statistics event, not an error: pages that could not be fully
// evacuated this cycle stay in the directory and remain candidates
// next cycle.
type Relocator interface {
	Start()
	Relocate(set *RelocationSet) bool
}

type relocator struct {
	heap *Heap
}

func newRelocator(h *Heap) *relocator {
	return &relocator{heap: h}
}

// Start remaps roots through the forwarding table, eagerly relocating
// any root object that lives in a selected page so mutators never
// observe a stale root.
func (r *relocator) Start() {
	h := r.heap
	h.roots.do(func(addr *Address) {
		if *addr == Nil {
			return
		}
		f := h.forwardings.get(*addr)
		if f == nil {
			return
		}
		*addr = r.relocateObject(f, *addr)
	})
}

// relocateObject copies one object out of a selected page, or returns
// the existing forwarded address if it was already copied. On OOM the
// old address is returned and the object stays put.
func (r *relocator) relocateObject(f *Forwarding, addr Address) Address {
	a := addr.untagged()
	if to, ok := f.find(a); ok {
		return to
	}
	page := f.Page()
	obj, ok := page.ObjectAt(a)
	if !ok {
		return addr
	}
	// Serialize copies of the same page so two workers cannot race
	// the same object into two new homes.
	f.mu.Lock()
	defer f.mu.Unlock()
	if to, ok := f.entries[uint64(a-page.start)]; ok {
		return to
	}
	page.mu.Lock()
	clone := &Object{Size: obj.Size, Refs: append([]Address(nil), obj.Refs...)}
	page.mu.Unlock()
	to := r.heap.allocator.allocForRelocation(clone, page.typ)
	if to == Nil {
		return addr
	}
	f.entries[uint64(a-page.start)] = to
	return to
}

// Relocate evacuates every page in the set in parallel and frees the
// pages that drained completely.
func (r *relocator) Relocate(set *RelocationSet) bool {
	h := r.heap
	forwardings := make([]*Forwarding, 0, set.Len())
	for f := range set.Forwardings() {
		forwardings = append(forwardings, f)
	}

	var next atomic.Int64
	var failed atomic.Bool
	h.workers.runParallel(newTask("RelocateTask", func(worker int) {
		for {
			i := int(next.Add(1)) - 1
			if i >= len(forwardings) {
				return
			}
			if !r.relocatePage(forwardings[i]) {
				failed.Store(true)
			}
		}
	}))
	h.allocator.retireRelocationTargets()
	return !failed.Load()
}

func (r *relocator) relocatePage(f *Forwarding) bool {
	h := r.heap
	page := f.Page()

	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return true
	}
	f.mu.Unlock()

	for addr := range page.markedObjects(h.seq()) {
		if to := r.relocateObject(f, addr); to == addr {
			// Out of memory; leave the page for the next cycle.
			return false
		}
	}

	f.mu.Lock()
	f.done = true
	f.mu.Unlock()

	// The page drained completely; reclaim it. Forwarding entries
	// stay valid until the set is reset.
	h.FreePage(page, true)
	return true
}

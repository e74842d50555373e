package oolong

import "sync"

// Forwarding is the per-page old-offset to new-address map for a page
// selected for relocation. It is created at relocation-set selection,
// populated during relocation and destroyed when the set is reset —
// in particular it outlives the page itself, which is freed as soon as
// it has been fully evacuated.
type Forwarding struct {
	page *Page

	mu      sync.Mutex
	entries map[uint64]Address
	done    bool
}

func newForwarding(p *Page) *Forwarding {
	return &Forwarding{
		page:    p,
		entries: make(map[uint64]Address),
	}
}

func (f *Forwarding) Page() *Page { return f.page }

func (f *Forwarding) insert(offset uint64, to Address) {
	f.mu.Lock()
	f.entries[offset] = to
	f.mu.Unlock()
}

// find returns the forwarded address for an old address inside the
// page, if the object has been relocated.
func (f *Forwarding) find(addr Address) (Address, bool) {
	a := addr.untagged()
	if a < f.page.start || a >= f.page.End() {
		return Nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	to, ok := f.entries[uint64(a-f.page.start)]
	return to, ok
}

func (f *Forwarding) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// forwardingTable maps addresses to forwarding records, keyed by
// granule like the page directory. Insertion and removal only happen
// at selection/reset boundaries, so they never race the concurrent
// lookups performed by relocating workers and read barriers; the
// RWMutex keeps the map itself coherent.
type forwardingTable struct {
	mu       sync.RWMutex
	granules map[int]*Forwarding
}

func newForwardingTable() *forwardingTable {
	return &forwardingTable{granules: make(map[int]*Forwarding)}
}

func (t *forwardingTable) insert(f *Forwarding) {
	first := granuleIndex(f.page.start)
	t.mu.Lock()
	for i := range int(f.page.size / GranuleSize) {
		t.granules[first+i] = f
	}
	t.mu.Unlock()
}

func (t *forwardingTable) remove(f *Forwarding) {
	first := granuleIndex(f.page.start)
	t.mu.Lock()
	for i := range int(f.page.size / GranuleSize) {
		delete(t.granules, first+i)
	}
	t.mu.Unlock()
}

// get returns the forwarding covering addr, or nil.
func (t *forwardingTable) get(addr Address) *Forwarding {
	a := addr.untagged()
	if a < heapBase {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.granules[granuleIndex(a)]
}

func (t *forwardingTable) empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.granules) == 0
}

package oolong

import (
	"sync"
	"sync/atomic"
)

// WeakRootsProcessor prunes weak root sets. ProcessWeakRoots runs
// inside the mark-end safepoint; ProcessConcurrentWeakRoots runs
// concurrently on the worker pool during reference processing.
type WeakRootsProcessor interface {
	ProcessWeakRoots()
	ProcessConcurrentWeakRoots()
}

// weakTable is an intern-style weak root set: entries keep their value
// only as long as the referent stays strongly reachable.
type weakTable struct {
	mu      sync.RWMutex
	entries map[string]Address
}

func (t *weakTable) put(key string, addr Address) {
	t.mu.Lock()
	if t.entries == nil {
		t.entries = make(map[string]Address)
	}
	t.entries[key] = addr
	t.mu.Unlock()
}

func (t *weakTable) lookup(key string) (Address, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	addr, ok := t.entries[key]
	return addr, ok
}

func (t *weakTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *weakTable) keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	return keys
}

// removeIfDead deletes the entry unless its referent is live.
func (t *weakTable) removeIfDead(key string, live func(Address) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr, ok := t.entries[key]
	if ok && !live(addr) {
		delete(t.entries, key)
	}
}

type weakRootsProcessor struct {
	heap *Heap
}

func newWeakRootsProcessor(h *Heap) *weakRootsProcessor {
	return &weakRootsProcessor{heap: h}
}

func (w *weakRootsProcessor) ProcessWeakRoots() {
	for _, key := range w.heap.weakTable.keys() {
		w.heap.weakTable.removeIfDead(key, w.heap.isObjectLive)
	}
}

func (w *weakRootsProcessor) ProcessConcurrentWeakRoots() {
	keys := w.heap.weakTable.keys()
	var next atomic.Int64
	w.heap.workers.runParallel(newTask("WeakRootsTask", func(worker int) {
		for {
			i := int(next.Add(1)) - 1
			if i >= len(keys) {
				return
			}
			w.heap.weakTable.removeIfDead(keys[i], w.heap.isObjectLive)
		}
	}))
}

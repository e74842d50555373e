package oolong

import (
	"slices"
	"sync"
)

// Class is a registered class record. A class dies when its mirror
// object is no longer reachable.
type Class struct {
	name   string
	mirror Address
}

func (c *Class) Name() string    { return c.name }
func (c *Class) Mirror() Address { return c.mirror }

// Unloader performs concurrent class/code unloading. Prepare runs at
// mark end and snapshots the classes that died this cycle; Unload
// drops them, and only runs when the unload policy fired.
type Unloader interface {
	Prepare()
	Unload()
}

type unloader struct {
	heap *Heap

	mu           sync.Mutex
	classes      []*Class
	dead         []*Class
	metaCapacity uint64
}

func newUnloader(h *Heap) *unloader {
	return &unloader{heap: h}
}

func (u *unloader) register(name string, mirror Address) *Class {
	c := &Class{name: name, mirror: mirror}
	u.mu.Lock()
	u.classes = append(u.classes, c)
	u.mu.Unlock()
	return c
}

func (u *unloader) Prepare() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dead = u.dead[:0]
	for _, c := range u.classes {
		if c.mirror != Nil && !u.heap.isObjectLive(c.mirror) {
			u.dead = append(u.dead, c)
		}
	}
}

func (u *unloader) Unload() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, c := range u.dead {
		i := slices.Index(u.classes, c)
		if i >= 0 {
			u.classes = slices.Delete(u.classes, i, i+1)
		}
		u.heap.sink.Inc(CounterClassesUnloaded)
		if u.heap.logger != nil {
			u.heap.logger.Printf("unloaded class %s", c.name)
		}
	}
	u.dead = u.dead[:0]
}

// computeNewSize resizes the metadata space target after marking, the
// moral equivalent of a metaspace recompute.
func (u *unloader) computeNewSize() {
	u.mu.Lock()
	u.metaCapacity = alignUp(uint64(len(u.classes)) * GranuleSize)
	u.mu.Unlock()
}

func (u *unloader) classNames() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	names := make([]string, len(u.classes))
	for i, c := range u.classes {
		names[i] = c.name
	}
	return names
}

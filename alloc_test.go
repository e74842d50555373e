package oolong

import "testing"

func TestTLABBumpAllocation(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	a := mut.AllocObject(&Object{Size: 16})
	b := mut.AllocObject(&Object{Size: 10})
	c := mut.AllocObject(&Object{Size: 8})
	if b != a+16 {
		t.Fatalf("second alloc at 0x%x, want 0x%x", uint64(b), uint64(a+16))
	}
	// 10 rounds up to 16.
	if c != b+16 {
		t.Fatalf("third alloc at 0x%x, want 0x%x", uint64(c), uint64(b+16))
	}
	if h.pageOf(a) != h.pageOf(c) {
		t.Fatal("small allocations split across TLABs")
	}
	if got := h.TLABUsed(); got != 48 {
		t.Fatalf("TLAB used = %d, want 48", got)
	}
}

func TestTLABRetiredAtMarkStart(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	a := mut.AllocObject(&Object{Size: 16})
	p := h.pageOf(a)
	if !p.IsAllocating() {
		t.Fatal("TLAB page not allocating")
	}

	markStart(t, h)
	if p.IsAllocating() {
		t.Fatal("TLAB page not retired at mark start")
	}
	if h.TLABUsed() != 0 {
		t.Fatal("retired TLAB still counted as in use")
	}

	b := mut.AllocObject(&Object{Size: 16})
	if h.pageOf(b) == p {
		t.Fatal("allocation continued into a retired TLAB")
	}
}

func TestAllocObjectSizeClasses(t *testing.T) {
	h := newTestHeap(t, Config{}) // small limit 2048, medium limit 8192
	mut := h.NewMutator()

	small := mut.AllocObject(&Object{Size: 2048})
	if got := h.pageOf(small).Type(); got != PageTypeSmall {
		t.Fatalf("2048-byte object on %s page, want Small", got)
	}

	medium := mut.AllocObject(&Object{Size: 2049})
	if got := h.pageOf(medium).Type(); got != PageTypeMedium {
		t.Fatalf("2049-byte object on %s page, want Medium", got)
	}

	large := mut.AllocObject(&Object{Size: 9000})
	lp := h.pageOf(large)
	if lp.Type() != PageTypeLarge {
		t.Fatalf("9000-byte object on %s page, want Large", lp.Type())
	}
	// Large pages hold exactly one object and retire immediately.
	if lp.IsAllocating() {
		t.Fatal("large page still allocating")
	}
	if lp.Size() != 3*GranuleSize {
		t.Fatalf("large page size = %d, want %d", lp.Size(), 3*GranuleSize)
	}
}

func TestSharedMediumPage(t *testing.T) {
	h := newTestHeap(t, Config{})
	m1 := h.NewMutator()
	m2 := h.NewMutator()

	a := m1.AllocObject(&Object{Size: 4000})
	b := m2.AllocObject(&Object{Size: 4000})
	if h.pageOf(a) != h.pageOf(b) {
		t.Fatal("medium allocations not shared across mutators")
	}
}

func TestAllocObjectOutOfMemory(t *testing.T) {
	stats := NewMemoryStats()
	h := newTestHeap(t, Config{
		MaxCapacity: 4 * GranuleSize,
		StatSink:    stats,
	})
	mut := h.NewMutator()

	// One small page backs the whole heap; fill it.
	for range 4 * GranuleSize / 2048 {
		if mut.AllocObject(&Object{Size: 2048}) == Nil {
			t.Fatal("alloc failed before the heap filled")
		}
	}
	if mut.AllocObject(&Object{Size: 2048}) != Nil {
		t.Fatal("alloc succeeded past max capacity")
	}
	if got := stats.Count(CounterOutOfMemory); got != 1 {
		t.Fatalf("out of memory counter = %d, want 1", got)
	}
	if !h.IsAllocStalled() {
		t.Fatal("failed mutator allocation did not stall")
	}
}

func TestUnsafeMaxTLABAlloc(t *testing.T) {
	h := newTestHeap(t, Config{})
	if got := h.UnsafeMaxTLABAlloc(); got != h.MaxTLABSize() {
		t.Fatalf("empty heap max TLAB alloc = %d, want %d", got, h.MaxTLABSize())
	}
}

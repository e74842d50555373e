package oolong

import "testing"

// prepareRelocation runs a cycle up to the point where the relocation
// set has been selected.
func prepareRelocation(t *testing.T, h *Heap) {
	t.Helper()
	markStart(t, h)
	h.Mark()
	if !markEnd(t, h) {
		t.Fatal("mark end failed")
	}
	h.ProcessNonStrongReferences()
	h.ResetRelocationSet()
	h.SelectRelocationSet()
}

func TestRelocationMovesLiveObjects(t *testing.T) {
	stats := NewMemoryStats()
	h := newTestHeap(t, Config{StatSink: stats})
	mut := h.NewMutator()

	a := mut.AllocObject(&Object{Size: 64})
	mut.AllocObject(&Object{Size: 4096}) // garbage
	root := h.AddRoot(a)

	prepareRelocation(t, h)
	if h.forwardings.get(a) == nil {
		t.Fatal("sparse page not selected")
	}

	// Relocate start eagerly moves root objects.
	h.Safepoint(h.RelocateStart)
	moved := *root
	if moved == a {
		t.Fatal("root not relocated at relocate start")
	}
	if !h.IsIn(moved) {
		t.Fatal("relocated root points outside heap")
	}

	h.Relocate()

	if h.pageOf(a) != nil {
		t.Fatal("evacuated page still in directory")
	}
	if got := h.RemapAddress(a); got != moved {
		t.Fatalf("remap of old address = 0x%x, want 0x%x", uint64(got), uint64(moved))
	}
	if h.Reclaimed() < 4*GranuleSize {
		t.Fatalf("reclaimed = %d, want at least one page", h.Reclaimed())
	}
	if stats.Count(CounterRelocationFailed) != 0 {
		t.Fatal("relocation reported failed")
	}
}

func TestRelocationHealsReferences(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	a := mut.AllocObject(&Object{Size: 64, Refs: make([]Address, 1)})
	b := mut.AllocObject(&Object{Size: 64})
	mut.Write(a, 0, b)
	root := h.AddRoot(a)

	prepareRelocation(t, h)
	h.Safepoint(h.RelocateStart)
	h.Relocate()

	// Reading through the old addresses lands on the new copies.
	got := mut.Read(a, 0)
	if got == b {
		t.Fatal("field still holds the old referent address")
	}
	if !h.IsIn(got) {
		t.Fatal("healed field points outside heap")
	}
	if got != h.RemapAddress(b) {
		t.Fatal("healed field disagrees with the forwarding table")
	}
	_ = root
}

func TestRelocationSharesForwardedCopy(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	a := mut.AllocObject(&Object{Size: 64})
	r1 := h.AddRoot(a)
	r2 := h.AddRoot(a)

	prepareRelocation(t, h)
	h.Safepoint(h.RelocateStart)
	h.Relocate()

	if *r1 != *r2 {
		t.Fatalf("roots diverged: 0x%x vs 0x%x", uint64(*r1), uint64(*r2))
	}
	if *r1 == a {
		t.Fatal("roots not updated")
	}
}

// With no room for a target page the cycle degrades gracefully: the
// failure is counted and the page stays put, a candidate for the next
// cycle.
func TestRelocationOutOfMemoryLeavesPage(t *testing.T) {
	stats := NewMemoryStats()
	h := newTestHeap(t, Config{
		MaxCapacity: 4 * GranuleSize,
		StatSink:    stats,
	})
	mut := h.NewMutator()

	a := mut.AllocObject(&Object{Size: 64})
	root := h.AddRoot(a)

	prepareRelocation(t, h)
	if h.forwardings.get(a) == nil {
		t.Fatal("page not selected")
	}

	h.Safepoint(h.RelocateStart)
	if *root != a {
		t.Fatal("root moved despite exhausted heap")
	}

	h.Relocate()

	if got := stats.Count(CounterRelocationFailed); got != 1 {
		t.Fatalf("relocation failed counter = %d, want 1", got)
	}
	if h.pageOf(a) == nil {
		t.Fatal("unevacuated page removed from directory")
	}
	if !h.IsIn(a) {
		t.Fatal("object lost on failed relocation")
	}
}

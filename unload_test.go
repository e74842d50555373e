package oolong

import (
	"slices"
	"testing"
)

func TestClassUnloading(t *testing.T) {
	stats := NewMemoryStats()
	h := newTestHeap(t, Config{
		ClassUnloading: true,
		StatSink:       stats,
	})
	mut := h.NewMutator()

	liveMirror := mut.AllocObject(&Object{Size: 16})
	deadMirror := mut.AllocObject(&Object{Size: 16})
	h.RegisterClass("LiveClass", liveMirror)
	h.RegisterClass("DeadClass", deadMirror)
	h.AddRoot(liveMirror)

	h.setCause(CauseExplicitGC)
	markStart(t, h)
	h.Mark()
	if !markEnd(t, h) {
		t.Fatal("mark end failed")
	}
	h.ProcessNonStrongReferences()
	if !h.ShouldUnloadClass() {
		t.Fatal("explicit GC did not force unloading")
	}
	h.Safepoint(h.UnloadClass)
	h.FinishNonStrongReferences()

	names := h.Classes()
	if !slices.Equal(names, []string{"LiveClass"}) {
		t.Fatalf("classes after unload = %v, want [LiveClass]", names)
	}
	if got := stats.Count(CounterClassesUnloaded); got != 1 {
		t.Fatalf("unloaded counter = %d, want 1", got)
	}
	if h.ResurrectionBlocked() {
		t.Fatal("resurrection still blocked after finish")
	}
}

func TestClassUnloadingDisabled(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	h.RegisterClass("DeadClass", mut.AllocObject(&Object{Size: 16}))

	h.setCause(CauseExplicitGC)
	markCycle(t, h)

	if len(h.Classes()) != 1 {
		t.Fatal("class unloaded with unloading disabled")
	}
}

func TestUnloadClassRequiresSafepoint(t *testing.T) {
	h := newTestHeap(t, Config{ClassUnloading: true})
	wantPanic(t, "requires a safepoint", h.UnloadClass)
}

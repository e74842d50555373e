package oolong

import "testing"

// allocLinked allocates an object with nref nil reference fields.
func allocLinked(mut *Mutator, nref int) Address {
	return mut.AllocObject(&Object{Size: 32, Refs: make([]Address, nref)})
}

func TestMarkFollowsObjectGraph(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	a := allocLinked(mut, 1)
	b := allocLinked(mut, 1)
	c := allocLinked(mut, 0)
	mut.Write(a, 0, b)
	h.AddRoot(a)

	markStart(t, h)
	h.Mark()
	if !markEnd(t, h) {
		t.Fatal("mark end failed")
	}

	if !h.isObjectLive(a) || !h.isObjectLive(b) {
		t.Fatal("reachable objects not marked")
	}
	if h.isObjectLive(c) {
		t.Fatal("unreachable object marked")
	}
}

func TestMarkNilAndCyclicRefs(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	a := allocLinked(mut, 2)
	b := allocLinked(mut, 1)
	mut.Write(a, 0, b)
	// a.1 stays nil; b points back at a.
	mut.Write(b, 0, a)
	h.AddRoot(a)

	markStart(t, h)
	h.Mark()
	if !markEnd(t, h) {
		t.Fatal("marking did not terminate on a cyclic graph")
	}
	if !h.isObjectLive(a) || !h.isObjectLive(b) {
		t.Fatal("cycle members not marked")
	}
}

// An overwrite during marking must not hide the old referent: the
// write barrier records it, mark end flushes it and reports the work
// as incomplete, and the retry marks it.
func TestWriteBarrierKeepsSnapshot(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	a := allocLinked(mut, 1)
	b := allocLinked(mut, 0)
	mut.Write(a, 0, b)
	h.AddRoot(a)

	markStart(t, h)

	// Sever the only edge to b before the marker ran.
	mut.Write(a, 0, Nil)

	h.Mark()
	if markEnd(t, h) {
		t.Fatal("mark end succeeded with an unflushed barrier buffer")
	}
	h.Mark()
	if !markEnd(t, h) {
		t.Fatal("mark retry failed")
	}
	if !h.isObjectLive(b) {
		t.Fatal("snapshot referent lost to a concurrent overwrite")
	}
}

func TestMarkFlushAndFree(t *testing.T) {
	h := newTestHeap(t, Config{})
	mut := h.NewMutator()

	a := allocLinked(mut, 1)
	b := allocLinked(mut, 0)
	mut.Write(a, 0, b)
	h.AddRoot(a)

	markStart(t, h)
	mut.Write(a, 0, Nil)

	h.MarkFlushAndFree(mut)
	if buf := mut.takeMarkBuffer(); buf != nil {
		t.Fatalf("mark buffer not drained by flush: %v", buf)
	}

	h.Mark()
	if !markEnd(t, h) {
		t.Fatal("mark end failed")
	}
	if !h.isObjectLive(b) {
		t.Fatal("flushed referent not marked")
	}
}

func TestMarkIgnoresNonHeapRoots(t *testing.T) {
	h := newTestHeap(t, Config{})
	h.AddRoot(Nil)

	markStart(t, h)
	h.Mark()
	if !markEnd(t, h) {
		t.Fatal("mark end failed with nil root")
	}
}

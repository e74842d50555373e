package oolong

import "testing"

func testPage(size uint64) *Page {
	return &Page{id: 1, typ: PageTypeSmall, start: heapBase, size: size, seqnum: 1, allocating: true}
}

func TestPageAlloc(t *testing.T) {
	p := testPage(GranuleSize)

	a := p.Alloc(&Object{Size: 24})
	b := p.Alloc(&Object{Size: 10})
	if a != p.start {
		t.Fatalf("first alloc at 0x%x, want page start", uint64(a))
	}
	if b != a+24 {
		t.Fatalf("second alloc at 0x%x, want 0x%x", uint64(b), uint64(a+24))
	}
	// 10 rounds up to 16.
	if got := p.Top(); got != 40 {
		t.Fatalf("top = %d, want 40", got)
	}
	if got := p.Remaining(); got != GranuleSize-40 {
		t.Fatalf("remaining = %d, want %d", got, GranuleSize-40)
	}

	if p.Alloc(&Object{Size: GranuleSize}) != Nil {
		t.Fatal("oversized alloc succeeded")
	}
}

func TestPageObjectAt(t *testing.T) {
	p := testPage(GranuleSize)
	obj := &Object{Size: 32}
	addr := p.Alloc(obj)
	p.Alloc(&Object{Size: 8})

	for _, probe := range []Address{addr, addr + 8, addr + 31} {
		got, ok := p.ObjectAt(probe)
		if !ok || got != obj {
			t.Fatalf("ObjectAt(0x%x) = (%v, %v), want first object", uint64(probe), got, ok)
		}
	}
	if got := p.BlockStart(addr + 16); got != addr {
		t.Fatalf("BlockStart = 0x%x, want 0x%x", uint64(got), uint64(addr))
	}
	if got := p.BlockSize(addr + 16); got != 32 {
		t.Fatalf("BlockSize = %d, want 32", got)
	}
	if !p.BlockIsObj(addr) || p.BlockIsObj(addr+8) {
		t.Fatal("BlockIsObj misclassified")
	}
	if _, ok := p.ObjectAt(p.start + Address(p.Top())); ok {
		t.Fatal("address beyond top resolved to an object")
	}
}

func TestPageLivemap(t *testing.T) {
	p := testPage(GranuleSize)
	a := p.Alloc(&Object{Size: 16})
	b := p.Alloc(&Object{Size: 24})

	const cycle = 2
	if !p.markObject(a, cycle) {
		t.Fatal("first mark not newly marked")
	}
	if p.markObject(a, cycle) {
		t.Fatal("second mark of same object reported as new")
	}
	// Interior pointers mark the containing object.
	if p.markObject(b+8, cycle) != true {
		t.Fatal("interior mark failed")
	}

	if !p.isObjectMarked(a, cycle) || !p.isObjectMarked(b, cycle) {
		t.Fatal("marked objects not reported marked")
	}
	if !p.IsMarked(cycle) {
		t.Fatal("page with marked objects not reported marked")
	}
	objects, bytes := p.live(cycle)
	if objects != 2 || bytes != 40 {
		t.Fatalf("live = (%d, %d), want (2, 40)", objects, bytes)
	}

	// A newer cycle invalidates the livemap wholesale.
	if p.isObjectMarked(a, cycle+1) || p.IsMarked(cycle+1) {
		t.Fatal("stale livemap leaked into a newer cycle")
	}
	if objects, bytes := p.live(cycle + 1); objects != 0 || bytes != 0 {
		t.Fatalf("live under newer cycle = (%d, %d), want (0, 0)", objects, bytes)
	}

	// Marking under the newer cycle resets the livemap first.
	p.markObject(b, cycle+1)
	if p.isObjectMarked(a, cycle+1) {
		t.Fatal("old mark survived livemap reset")
	}
	if objects, _ := p.live(cycle + 1); objects != 1 {
		t.Fatalf("live objects = %d, want 1", objects)
	}
}

func TestPageRelocatable(t *testing.T) {
	p := testPage(GranuleSize)
	if p.isRelocatable(1) {
		t.Fatal("page relocatable within its own cycle")
	}
	if !p.isRelocatable(2) {
		t.Fatal("page not relocatable once a newer cycle started")
	}
}

func TestPageMarkedObjectsInAddressOrder(t *testing.T) {
	p := testPage(GranuleSize)
	a := p.Alloc(&Object{Size: 16})
	b := p.Alloc(&Object{Size: 16})
	c := p.Alloc(&Object{Size: 16})

	const cycle = 2
	p.markObject(c, cycle)
	p.markObject(a, cycle)

	var got []Address
	for addr := range p.markedObjects(cycle) {
		got = append(got, addr)
	}
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("marked objects = %v, want [0x%x 0x%x]", got, uint64(a), uint64(c))
	}
	_ = b
}

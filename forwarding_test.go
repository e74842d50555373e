package oolong

import "testing"

func TestForwardingFind(t *testing.T) {
	p := &Page{id: 1, start: heapBase, size: 2 * GranuleSize}
	f := newForwarding(p)

	from := p.start + 64
	to := heapBase + 8*GranuleSize
	f.insert(64, to)

	if got, ok := f.find(from); !ok || got != to {
		t.Fatalf("find(0x%x) = (0x%x, %v), want (0x%x, true)", uint64(from), uint64(got), ok, uint64(to))
	}
	// Tagged addresses resolve through the canonical form.
	if got, ok := f.find(from.Finalizable()); !ok || got != to {
		t.Fatal("tagged address did not resolve")
	}
	if _, ok := f.find(p.start + 128); ok {
		t.Fatal("unrelocated offset resolved")
	}
	if _, ok := f.find(p.End()); ok {
		t.Fatal("address outside page resolved")
	}
	if f.len() != 1 {
		t.Fatalf("len = %d, want 1", f.len())
	}
}

func TestForwardingTable(t *testing.T) {
	tbl := newForwardingTable()
	if !tbl.empty() {
		t.Fatal("new table not empty")
	}

	p := &Page{id: 1, start: heapBase + 4*GranuleSize, size: 2 * GranuleSize}
	f := newForwarding(p)
	tbl.insert(f)

	if got := tbl.get(p.start + GranuleSize + 16); got != f {
		t.Fatalf("get = %v, want %v", got, f)
	}
	if tbl.get(heapBase) != nil {
		t.Fatal("uncovered granule resolved")
	}
	if tbl.empty() {
		t.Fatal("table empty after insert")
	}

	tbl.remove(f)
	if tbl.get(p.start) != nil || !tbl.empty() {
		t.Fatal("entries survived remove")
	}
}

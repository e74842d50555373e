package oolong

import "testing"

func TestPageTableLookup(t *testing.T) {
	tbl := newPageTable(16 * GranuleSize)
	p := &Page{id: 1, start: heapBase + 4*GranuleSize, size: 3 * GranuleSize}

	tbl.insert(p)
	for i := range Address(3) {
		if got := tbl.get(p.start + i*GranuleSize); got != p {
			t.Fatalf("granule %d: got %v, want %v", i, got, p)
		}
	}
	if got := tbl.get(p.start - 1); got != nil {
		t.Fatalf("address before page resolved to %v", got)
	}
	if got := tbl.get(p.End()); got != nil {
		t.Fatalf("address after page resolved to %v", got)
	}

	// Lookups use the canonical address form.
	if got := tbl.get(p.start.Finalizable()); got != p {
		t.Fatal("tagged address did not resolve through canonical form")
	}

	tbl.remove(p)
	for i := range Address(3) {
		if tbl.get(p.start+i*GranuleSize) != nil {
			t.Fatalf("granule %d still mapped after remove", i)
		}
	}
}

func TestPageTableOutOfRange(t *testing.T) {
	tbl := newPageTable(4 * GranuleSize)
	if tbl.get(heapBase-GranuleSize) != nil {
		t.Fatal("address below heap base resolved")
	}
	if tbl.get(heapBase+100*GranuleSize) != nil {
		t.Fatal("address beyond reserved extent resolved")
	}
	if tbl.get(Nil) != nil {
		t.Fatal("nil address resolved")
	}
}

func TestPageTableWalkYieldsEachPageOnce(t *testing.T) {
	tbl := newPageTable(16 * GranuleSize)
	p1 := &Page{id: 1, start: heapBase, size: 2 * GranuleSize}
	p2 := &Page{id: 2, start: heapBase + 2*GranuleSize, size: 4 * GranuleSize}
	tbl.insert(p1)
	tbl.insert(p2)

	seen := make(map[PageID]int)
	for p := range tbl.pages() {
		seen[p.id]++
	}
	if len(seen) != 2 || seen[1] != 1 || seen[2] != 1 {
		t.Fatalf("walk yielded %v, want each page exactly once", seen)
	}
}

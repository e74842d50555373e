package oolong

// Address is a location in the simulated heap address space. The heap
// occupies [heapBase, heapBase+MaxCapacity); Nil is the null address.
//
// The only metadata carried in an address itself is the finalizable
// tag, set on references discovered through a final reference. A
// tagged address does not point into any heap view and is never
// considered to be "in the heap". All other per-object GC state lives
// out of band, on the owning Page, and is reached through the page
// directory.
type Address uint64

// Nil is the null heap address.
const Nil Address = 0

// GranuleSize is the allocation granule. Page sizes and page starts
// are always granule-aligned, which is what makes the flat granule
// directory possible.
const GranuleSize = 4096

const heapBase Address = 1 << 40

const finalizableTag Address = 1 << 62

// Finalizable returns a copy of the address carrying the finalizable
// metadata tag.
func (a Address) Finalizable() Address {
	return a | finalizableTag
}

// IsFinalizable reports whether the address carries the finalizable
// metadata tag.
func (a Address) IsFinalizable() bool {
	return a&finalizableTag != 0
}

// untagged returns the canonical form of the address, with all
// metadata stripped. Directory lookups always use the canonical form.
func (a Address) untagged() Address {
	return a &^ finalizableTag
}

func granuleIndex(a Address) int {
	return int((a.untagged() - heapBase) / GranuleSize)
}

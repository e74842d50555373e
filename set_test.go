package oolong

import "testing"

func TestSet(t *testing.T) {
	var s Set[uint64]
	if s.Has(1) || s.Len() != 0 {
		t.Fatal("zero set not empty")
	}

	s.Add(1)
	s.Add(2)
	s.Add(2)
	if !s.Has(1) || !s.Has(2) || s.Len() != 2 {
		t.Fatalf("set = %s", s.String())
	}

	s.Remove(1)
	if s.Has(1) || s.Len() != 1 {
		t.Fatal("remove failed")
	}
	s.Remove(99)

	var seen []uint64
	for e := range s.All() {
		seen = append(seen, e)
	}
	if len(seen) != 1 || seen[0] != 2 {
		t.Fatalf("All yielded %v", seen)
	}

	s.Clear()
	if s.Len() != 0 {
		t.Fatal("clear failed")
	}
}

package oolong

import (
	"fmt"
	"sync"
)

// RefKind is the strength of a reference object.
type RefKind uint8

const (
	RefSoft RefKind = iota
	RefWeak
	RefFinal
	RefPhantom
)

func (k RefKind) String() string {
	switch k {
	case RefSoft:
		return "Soft"
	case RefWeak:
		return "Weak"
	case RefFinal:
		return "Final"
	case RefPhantom:
		return "Phantom"
	}
	return fmt.Sprintf("RefKind(%d)", uint8(k))
}

// Reference is a soft/weak/final/phantom reference object.
type Reference struct {
	kind RefKind

	mu       sync.Mutex
	referent Address
	cleared  bool
}

func (r *Reference) Kind() RefKind { return r.kind }

// Get returns the referent, or Nil once the reference was cleared.
func (r *Reference) Get() Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cleared {
		return Nil
	}
	return r.referent
}

func (r *Reference) clear() {
	r.mu.Lock()
	r.cleared = true
	r.referent = Nil
	r.mu.Unlock()
}

// ReferenceStats counts reference processing events per kind.
type ReferenceStats struct {
	Encountered [4]uint64
	Discovered  [4]uint64
	Enqueued    [4]uint64
}

// ReferenceProcessor is the non-strong reference machinery consumed by
// the heap. EnqueueReferences must only run after resurrection has
// been unblocked; the default implementation enforces that.
type ReferenceProcessor interface {
	ResetStatistics()
	SetSoftReferencePolicy(clear bool)
	ProcessReferences()
	EnqueueReferences()
}

type referenceProcessor struct {
	heap *Heap

	mu         sync.Mutex
	registered []*Reference
	pending    []*Reference
	enqueued   []*Reference
	clearSoft  bool
	stats      ReferenceStats
}

func newReferenceProcessor(h *Heap) *referenceProcessor {
	return &referenceProcessor{heap: h}
}

func (rp *referenceProcessor) register(kind RefKind, referent Address) *Reference {
	r := &Reference{kind: kind, referent: referent}
	rp.mu.Lock()
	rp.registered = append(rp.registered, r)
	rp.stats.Encountered[kind]++
	rp.mu.Unlock()
	return r
}

func (rp *referenceProcessor) ResetStatistics() {
	rp.mu.Lock()
	rp.stats = ReferenceStats{}
	rp.mu.Unlock()
}

func (rp *referenceProcessor) SetSoftReferencePolicy(clear bool) {
	rp.mu.Lock()
	rp.clearSoft = clear
	rp.mu.Unlock()
}

// ProcessReferences discovers references whose referents died this
// cycle. Dead soft referents survive unless the clear-all policy is
// in effect. Final references keep their referent alive under the
// finalizable tag so the finalizer can still run; all other kinds are
// cleared. Discovered references move to the pending list, to be
// enqueued once resurrection is unblocked.
func (rp *referenceProcessor) ProcessReferences() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	kept := rp.registered[:0]
	for _, r := range rp.registered {
		referent := r.Get()
		if referent == Nil {
			continue
		}
		if rp.heap.isObjectLive(referent) {
			kept = append(kept, r)
			continue
		}
		if r.kind == RefSoft && !rp.clearSoft {
			kept = append(kept, r)
			continue
		}
		if r.kind == RefFinal {
			// Keep the referent reachable for finalization, but only
			// through a tagged address that no heap view resolves.
			rp.heap.markFinalizable(referent)
			r.mu.Lock()
			r.referent = referent.Finalizable()
			r.mu.Unlock()
		} else {
			r.clear()
		}
		rp.stats.Discovered[r.kind]++
		rp.pending = append(rp.pending, r)
	}
	rp.registered = kept
}

// EnqueueReferences publishes the pending references to consumers.
// This must happen strictly after resurrection is unblocked, else a
// consumer could observe a collected referent.
func (rp *referenceProcessor) EnqueueReferences() {
	if rp.heap.ResurrectionBlocked() {
		fatalf("references enqueued inside the resurrection block window")
	}
	rp.mu.Lock()
	for _, r := range rp.pending {
		rp.stats.Enqueued[r.kind]++
	}
	rp.enqueued = append(rp.enqueued, rp.pending...)
	rp.pending = nil
	rp.mu.Unlock()
}

// poll removes and returns the oldest enqueued reference.
func (rp *referenceProcessor) poll() *Reference {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if len(rp.enqueued) == 0 {
		return nil
	}
	r := rp.enqueued[0]
	rp.enqueued = rp.enqueued[1:]
	return r
}

func (rp *referenceProcessor) statistics() ReferenceStats {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.stats
}

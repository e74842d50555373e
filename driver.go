package oolong

import "fmt"

// GCCause names the event that requested a collection cycle.
type GCCause uint8

const (
	CauseNone GCCause = iota
	CauseTimer
	CauseWarmup
	CauseAllocationRate
	CauseAllocationStall
	CauseProactive
	CauseHighUsage
	CauseMetadataThreshold
	CauseExplicitGC
	CauseDiagnostic
	CauseForced
	CauseClearSoftRefs
)

func (c GCCause) String() string {
	switch c {
	case CauseNone:
		return "None"
	case CauseTimer:
		return "Timer"
	case CauseWarmup:
		return "Warmup"
	case CauseAllocationRate:
		return "Allocation Rate"
	case CauseAllocationStall:
		return "Allocation Stall"
	case CauseProactive:
		return "Proactive"
	case CauseHighUsage:
		return "High Usage"
	case CauseMetadataThreshold:
		return "Metadata Threshold"
	case CauseExplicitGC:
		return "Explicit GC"
	case CauseDiagnostic:
		return "Diagnostic Command"
	case CauseForced:
		return "Forced GC"
	case CauseClearSoftRefs:
		return "Clear Soft References"
	}
	return fmt.Sprintf("GCCause(%d)", uint8(c))
}

// DefaultUnloadCauses lists the causes that force class unloading
// regardless of the configured frequency. The set is a tuning
// decision, injectable through Config.UnloadCauses.
var DefaultUnloadCauses = []GCCause{
	CauseExplicitGC,
	CauseDiagnostic,
	CauseForced,
	CauseClearSoftRefs,
}

// Driver runs complete collection cycles against a heap, in the
// canonical phase order. The driver owns the safepoint windows; the
// heap only asserts them.
type Driver struct {
	heap *Heap
}

func NewDriver(h *Heap) *Driver {
	return &Driver{heap: h}
}

func shouldClearSoftReferences(h *Heap, cause GCCause) bool {
	// Clear if one or more allocations have stalled.
	if h.IsAllocStalled() {
		return true
	}
	// Clear if implied by the GC cause.
	return cause == CauseForced || cause == CauseClearSoftRefs
}

func shouldBoostWorkers(h *Heap, cause GCCause) bool {
	if h.IsAllocStalled() {
		return true
	}
	return cause == CauseForced || cause == CauseExplicitGC || cause == CauseClearSoftRefs
}

// Collect runs one full collection cycle.
func (d *Driver) Collect(cause GCCause) {
	h := d.heap
	h.setCause(cause)

	// Phase 1: Pause Mark Start.
	h.Safepoint(func() {
		h.SetSoftReferencePolicy(shouldClearSoftReferences(h, cause))
		h.SetBoostWorkers(shouldBoostWorkers(h, cause))
		h.MarkStart()
	})

	// Phase 2: Concurrent Mark.
	h.Mark()

	// Phase 3: Pause Mark End, retrying through concurrent mark
	// continue until marking terminates.
	for !d.pauseMarkEnd() {
		// Phase 3.5: Concurrent Mark Continue.
		h.Mark()
	}

	// Phase 4: Concurrent Process Non-Strong References.
	h.ProcessNonStrongReferences()

	// Phase 4.5: Class Unloading.
	if h.ShouldUnloadClass() {
		h.Safepoint(h.UnloadClass)
		h.FinishNonStrongReferences()
	}

	// Phase 5: Concurrent Reset Relocation Set.
	h.ResetRelocationSet()

	// Phase 6: Pause Verify.
	if h.cfg.Verify {
		h.Safepoint(h.Verify)
	}

	// Phase 7: Concurrent Select Relocation Set.
	h.SelectRelocationSet()

	// Phase 8: Pause Relocate Start.
	h.Safepoint(h.RelocateStart)

	// Phase 9: Concurrent Relocate.
	h.Relocate()

	if h.logger != nil {
		h.logger.Printf("gc cycle %d (%s): %s", h.seq(), cause, h)
	}
}

func (d *Driver) pauseMarkEnd() bool {
	var done bool
	d.heap.Safepoint(func() {
		done = d.heap.MarkEnd()
	})
	return done
}

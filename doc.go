// Package oolong implements the phase-coordination and page-lifecycle
// core of a concurrent, region-based, relocating garbage collector.
//
// The heap is divided into pages of a few size classes. A collection
// cycle runs three global phases: Mark, MarkCompleted and Relocate.
// Phase transitions happen inside short safepoint windows while
// mutators are quiesced; everything else (marking, reference
// processing, relocation, class unloading) runs concurrently with
// mutator execution on a fixed pool of worker goroutines.
//
// The Heap type is the single entry point. An external driver calls
// its phase-transition methods in a fixed order each cycle; Driver
// implements the canonical sequence.
package oolong

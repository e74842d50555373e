package oolong

import (
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
)

// Phase is the process-wide collection phase. It changes only inside
// safepoints and gates which operations are legal.
type Phase int32

const (
	PhaseMark Phase = iota
	PhaseMarkCompleted
	PhaseRelocate
)

func (p Phase) String() string {
	switch p {
	case PhaseMark:
		return "Mark"
	case PhaseMarkCompleted:
		return "MarkCompleted"
	case PhaseRelocate:
		return "Relocate"
	}
	return fmt.Sprintf("Phase(%d)", int32(p))
}

// View is the canonical interpretation of heap addresses, flipped at
// mark start and relocate start. It is tracked out of band, on the
// heap and stamped onto pages, instead of being encoded in pointer
// bits.
type View int32

const (
	ViewMarked View = iota
	ViewRemapped
)

func (v View) String() string {
	if v == ViewMarked {
		return "Marked"
	}
	return "Remapped"
}

func fatalf(format string, args ...any) {
	panic(fmt.Sprintf("oolong: "+format, args...))
}

// Config configures a Heap. MaxCapacity is required; everything else
// has a default.
type Config struct {
	MinCapacity     uint64
	MaxCapacity     uint64
	SoftMaxCapacity uint64

	SmallPageSize  uint64
	MediumPageSize uint64

	Workers int

	// ClassUnloading enables the unload policy; UnloadFrequency makes
	// cycle N unload when (N-1) mod frequency == 0; UnloadCauses lists
	// the GC causes that force unloading regardless of frequency.
	ClassUnloading  bool
	UnloadFrequency uint32
	UnloadCauses    []GCCause

	// Verify makes the driver run heap verification each cycle.
	Verify bool

	StatSink StatSink
	Logger   *log.Logger

	// Collaborator overrides, nil for the built-in implementations.
	Marker     Marker
	References ReferenceProcessor
	WeakRoots  WeakRootsProcessor
	Relocator  Relocator
	Unloader   Unloader
}

func (c Config) withDefaults() (Config, error) {
	if c.MaxCapacity == 0 || c.MaxCapacity%GranuleSize != 0 {
		return c, fmt.Errorf("oolong: max capacity must be a nonzero granule multiple, got %d", c.MaxCapacity)
	}
	if c.MinCapacity == 0 {
		c.MinCapacity = c.MaxCapacity
	}
	if c.SoftMaxCapacity == 0 {
		c.SoftMaxCapacity = c.MaxCapacity
	}
	if c.MinCapacity > c.MaxCapacity || c.SoftMaxCapacity > c.MaxCapacity {
		return c, fmt.Errorf("oolong: min/soft-max capacity exceeds max capacity")
	}
	if c.SmallPageSize == 0 {
		c.SmallPageSize = 64 * GranuleSize
	}
	if c.MediumPageSize == 0 {
		c.MediumPageSize = 16 * c.SmallPageSize
	}
	if c.SmallPageSize%GranuleSize != 0 || c.MediumPageSize%GranuleSize != 0 {
		return c, fmt.Errorf("oolong: page sizes must be granule multiples")
	}
	if c.Workers <= 0 {
		c.Workers = max(1, runtime.GOMAXPROCS(0))
	}
	if c.UnloadCauses == nil {
		c.UnloadCauses = DefaultUnloadCauses
	}
	if c.StatSink == nil {
		c.StatSink = discardStats{}
	}
	return c, nil
}

func (c *Config) smallObjectLimit() uint64  { return c.SmallPageSize / 8 }
func (c *Config) mediumObjectLimit() uint64 { return c.MediumPageSize / 8 }

// rootSet is the strong root registry. Slots are stable so the
// relocator can update them in place.
type rootSet struct {
	mu    sync.Mutex
	addrs []*Address
}

func (r *rootSet) add(addr Address) *Address {
	slot := new(Address)
	*slot = addr
	r.mu.Lock()
	r.addrs = append(r.addrs, slot)
	r.mu.Unlock()
	return slot
}

func (r *rootSet) snapshot() []Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Address, 0, len(r.addrs))
	for _, slot := range r.addrs {
		out = append(out, *slot)
	}
	return out
}

func (r *rootSet) do(f func(*Address)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, slot := range r.addrs {
		f(slot)
	}
}

// Heap owns every collector component and drives the global phase
// state machine. It is constructed once and passed explicitly to
// whatever needs it; there is no package-level instance.
type Heap struct {
	cfg    Config
	sink   StatSink
	logger *log.Logger

	workers     *workers
	source      *PageSource
	table       *pageTable
	forwardings *forwardingTable
	allocator   *objectAllocator

	markerImpl *marker
	refsImpl   *referenceProcessor
	unloadImpl *unloader

	marker    Marker
	refs      ReferenceProcessor
	weakRoots WeakRootsProcessor
	relocator Relocator
	unloader  Unloader

	weakTable     weakTable
	roots         rootSet
	relocationSet RelocationSet
	relocateDefer bool
	resurrection  resurrection

	// stw is the world lock: mutator paths hold it for read, safepoint
	// operations for write.
	stw         sync.RWMutex
	atSafepoint atomic.Bool

	phase  atomic.Int32
	view   atomic.Int32
	seqnum atomic.Uint32
	cause  atomic.Int32

	keepAliveMu      sync.Mutex
	pendingKeepAlive []Address
}

// New constructs a heap. The configuration is validated eagerly so a
// half-initialized heap can never be observed.
func New(cfg Config) (*Heap, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	h := &Heap{
		cfg:         cfg,
		sink:        cfg.StatSink,
		logger:      cfg.Logger,
		workers:     newWorkers(cfg.Workers),
		source:      newPageSource(cfg.MinCapacity, cfg.MaxCapacity, cfg.SoftMaxCapacity),
		table:       newPageTable(cfg.MaxCapacity),
		forwardings: newForwardingTable(),
	}
	h.allocator = newObjectAllocator(h)
	h.markerImpl = newMarker(h)
	h.refsImpl = newReferenceProcessor(h)
	h.unloadImpl = newUnloader(h)

	h.marker = cfg.Marker
	if h.marker == nil {
		h.marker = h.markerImpl
	}
	h.refs = cfg.References
	if h.refs == nil {
		h.refs = h.refsImpl
	}
	h.weakRoots = cfg.WeakRoots
	if h.weakRoots == nil {
		h.weakRoots = newWeakRootsProcessor(h)
	}
	h.relocator = cfg.Relocator
	if h.relocator == nil {
		h.relocator = newRelocator(h)
	}
	h.unloader = cfg.Unloader
	if h.unloader == nil {
		h.unloader = h.unloadImpl
	}

	// The first cycle's MarkStart must see a legal predecessor phase.
	h.phase.Store(int32(PhaseRelocate))
	h.seqnum.Store(1)
	return h, nil
}

// Close stops the worker pool. The heap is unusable afterwards.
func (h *Heap) Close() {
	h.workers.stop()
}

// IsInitialized reports whether all components are ready.
func (h *Heap) IsInitialized() bool {
	return h.source.IsInitialized() && h.marker.IsInitialized()
}

func (h *Heap) Phase() Phase { return Phase(h.phase.Load()) }
func (h *Heap) View() View   { return View(h.view.Load()) }

func (h *Heap) seq() uint32 { return h.seqnum.Load() }

func (h *Heap) setCause(c GCCause) { h.cause.Store(int32(c)) }
func (h *Heap) gcCause() GCCause   { return GCCause(h.cause.Load()) }

// Capacity accessors, delegated to the page source.
func (h *Heap) MinCapacity() uint64     { return h.source.MinCapacity() }
func (h *Heap) MaxCapacity() uint64     { return h.source.MaxCapacity() }
func (h *Heap) SoftMaxCapacity() uint64 { return h.source.SoftMaxCapacity() }
func (h *Heap) Capacity() uint64        { return h.source.Capacity() }
func (h *Heap) Used() uint64            { return h.source.Used() }
func (h *Heap) Unused() uint64          { return h.source.Unused() }
func (h *Heap) Allocated() uint64       { return h.source.Allocated() }
func (h *Heap) Reclaimed() uint64       { return h.source.Reclaimed() }
func (h *Heap) UsedHigh() uint64        { return h.source.UsedHigh() }
func (h *Heap) UsedLow() uint64         { return h.source.UsedLow() }

// TLAB accessors.
func (h *Heap) TLABCapacity() uint64 { return h.Capacity() }
func (h *Heap) TLABUsed() uint64     { return h.allocator.used() }
func (h *Heap) MaxTLABSize() uint64  { return h.cfg.smallObjectLimit() }

// UnsafeMaxTLABAlloc returns the largest TLAB request that can be
// satisfied without growing the heap; if the remaining space is too
// small to matter, the next request forces a new backing page anyway,
// so the full TLAB size is reported.
func (h *Heap) UnsafeMaxTLABAlloc() uint64 {
	size := h.allocator.remaining()
	if size < GranuleSize {
		size = h.MaxTLABSize()
	}
	return min(size, h.MaxTLABSize())
}

// Worker pool accessors.
func (h *Heap) NConcurrentWorkers() int        { return h.workers.nconcurrent() }
func (h *Heap) NConcurrentNoBoostWorkers() int { return h.workers.nconcurrentNoBoost() }
func (h *Heap) SetBoostWorkers(boost bool)     { h.workers.setBoost(boost) }

// ThreadsDo invokes f for every GC worker id.
func (h *Heap) ThreadsDo(f func(worker int)) { h.workers.threadsDo(f) }

// NewMutator registers a mutator thread handle.
func (h *Heap) NewMutator() *Mutator { return h.allocator.newMutator() }

// AddRoot registers a strong root and returns its stable slot. The
// relocator updates slots in place when root objects move.
func (h *Heap) AddRoot(addr Address) *Address { return h.roots.add(addr) }

// NewReference registers a reference object on the built-in reference
// processor.
func (h *Heap) NewReference(kind RefKind, referent Address) *Reference {
	return h.refsImpl.register(kind, referent)
}

// PollEnqueued removes and returns the oldest enqueued reference, or
// nil.
func (h *Heap) PollEnqueued() *Reference { return h.refsImpl.poll() }

// ReferenceStatistics returns the reference processing counts for the
// current cycle.
func (h *Heap) ReferenceStatistics() ReferenceStats { return h.refsImpl.statistics() }

// RegisterClass registers a class record for the unload policy.
func (h *Heap) RegisterClass(name string, mirror Address) *Class {
	return h.unloadImpl.register(name, mirror)
}

// Classes returns the names of the currently loaded classes.
func (h *Heap) Classes() []string { return h.unloadImpl.classNames() }

// InternWeak installs a weak table entry; it survives only while the
// referent stays reachable.
func (h *Heap) InternWeak(key string, addr Address) { h.weakTable.put(key, addr) }

// WeakLookup looks up a weak table entry.
func (h *Heap) WeakLookup(key string) (Address, bool) { return h.weakTable.lookup(key) }

// IsAllocStalled reports whether an allocation stalled since the last
// cycle started.
func (h *Heap) IsAllocStalled() bool { return h.source.isAllocStalled() }

// ResurrectionBlocked reports whether the resurrection block window is
// open.
func (h *Heap) ResurrectionBlocked() bool { return h.resurrection.isBlocked() }

// Safepoint quiesces mutators and runs fn inside the safepoint
// window. Phase-transition operations must be called from such a
// window.
func (h *Heap) Safepoint(fn func()) {
	h.stw.Lock()
	defer h.stw.Unlock()
	h.atSafepoint.Store(true)
	defer h.atSafepoint.Store(false)
	fn()
}

func (h *Heap) assertAtSafepoint(op string) {
	if !h.atSafepoint.Load() {
		fatalf("%s requires a safepoint", op)
	}
}

// setPhase advances the phase machine, checking that the transition is
// one of the legal ones.
func (h *Heap) setPhase(to Phase, from ...Phase) {
	cur := h.Phase()
	for _, f := range from {
		if cur == f {
			h.phase.Store(int32(to))
			return
		}
	}
	fatalf("illegal phase transition %s -> %s", cur, to)
}

// pageOf returns the page covering addr, or nil.
func (h *Heap) pageOf(addr Address) *Page {
	return h.table.get(addr)
}

// IsIn reports whether addr points into the allocated part of a page,
// looked up through the directory using the canonical address form.
// Addresses tagged finalizable-only are never in the heap.
func (h *Heap) IsIn(addr Address) bool {
	if addr == Nil || addr.IsFinalizable() {
		return false
	}
	page := h.pageOf(addr)
	return page != nil && page.IsIn(addr)
}

// BlockStart returns the start of the block containing addr.
func (h *Heap) BlockStart(addr Address) Address {
	page := h.pageOf(addr)
	if page == nil {
		return Nil
	}
	return page.BlockStart(addr)
}

// BlockSize returns the size of the block containing addr.
func (h *Heap) BlockSize(addr Address) uint64 {
	page := h.pageOf(addr)
	if page == nil {
		return 0
	}
	return page.BlockSize(addr)
}

// BlockIsObj reports whether addr is the start of an allocated object.
func (h *Heap) BlockIsObj(addr Address) bool {
	page := h.pageOf(addr)
	return page != nil && page.BlockIsObj(addr)
}

func (h *Heap) outOfMemory() {
	h.sink.Inc(CounterOutOfMemory)
	if h.logger != nil {
		h.logger.Printf("out of memory")
	}
}

// AllocPage acquires a page from the source and publishes it in the
// directory. The directory insert happens only after a successful
// allocation, so a lookup never sees a page the source still owns.
func (h *Heap) AllocPage(typ PageType, size uint64, flags AllocFlags) *Page {
	p := h.source.Alloc(typ, size, flags)
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.seqnum = h.seq()
	p.view = h.View()
	p.mu.Unlock()
	h.table.insert(p)
	return p
}

// UndoAllocPage returns a page that was still being filled. Calling it
// on a retired page is a fatal precondition violation.
func (h *Heap) UndoAllocPage(p *Page) {
	if !p.IsAllocating() {
		fatalf("undo of page %d: invalid page state", p.id)
	}
	h.sink.Inc(CounterUndoPageAlloc)
	if h.logger != nil {
		h.logger.Printf("undo page allocation, page: %d, size: %d", p.id, p.size)
	}
	h.FreePage(p, false)
}

// FreePage removes the directory entry and returns the page to the
// source, in that order, so the directory never holds a dangling
// entry.
func (h *Heap) FreePage(p *Page, reclaimed bool) {
	h.table.remove(p)
	h.source.Free(p, reclaimed)
}

func (h *Heap) flipToMarked()   { h.view.Store(int32(ViewMarked)) }
func (h *Heap) flipToRemapped() { h.view.Store(int32(ViewRemapped)) }

// MarkStart begins a collection cycle. Requires a safepoint.
func (h *Heap) MarkStart() {
	h.assertAtSafepoint("MarkStart")

	h.sink.Sample(SamplerUsedBeforeMark, h.Used())

	// Retire TLABs so no live object pointer hides in an unflushed
	// buffer.
	h.allocator.retireTLABs()

	h.flipToMarked()
	h.seqnum.Add(1)

	h.source.ResetStatistics()
	h.refs.ResetStatistics()

	h.setPhase(PhaseMark, PhaseRelocate)

	h.marker.Start()
}

// Mark drives concurrent marking work. May be called repeatedly.
func (h *Heap) Mark() {
	h.marker.Mark()
}

// MarkFlushAndFree drains one mutator's mark-local buffers. Safe to
// call from any participating thread.
func (h *Heap) MarkFlushAndFree(m *Mutator) {
	h.marker.FlushAndFree(m)
}

// MarkEnd attempts to finish marking. A false return means marking is
// incomplete and the caller must resume concurrent marking and retry;
// no state changes in that case. Requires a safepoint.
func (h *Heap) MarkEnd() bool {
	h.assertAtSafepoint("MarkEnd")

	if h.Phase() != PhaseMark {
		fatalf("MarkEnd outside Mark phase (%s)", h.Phase())
	}
	if !h.marker.End() {
		// Marking not completed, continue concurrent mark.
		return false
	}

	h.setPhase(PhaseMarkCompleted, PhaseMark)

	// Resize the metadata space now that liveness is known.
	h.unloadImpl.computeNewSize()

	h.sink.Sample(SamplerUsedAfterMark, h.Used())

	// Block resurrection of weak/phantom references until reference
	// processing is done with the mark state.
	h.resurrection.block()

	h.weakRoots.ProcessWeakRoots()

	h.unloader.Prepare()
	return true
}

// KeepAlive makes an object strongly reachable again. Inside the
// resurrection block window the request is deferred, not applied.
func (h *Heap) KeepAlive(addr Address) {
	if addr == Nil {
		return
	}
	if h.resurrection.isBlocked() {
		h.keepAliveMu.Lock()
		h.pendingKeepAlive = append(h.pendingKeepAlive, addr)
		h.keepAliveMu.Unlock()
		return
	}
	h.markLive(addr)
}

func (h *Heap) markLive(addr Address) {
	if page := h.pageOf(addr); page != nil {
		page.markObject(addr.untagged(), h.seq())
	}
}

// markFinalizable marks a dead referent as finalizably live.
func (h *Heap) markFinalizable(addr Address) {
	h.markLive(addr)
}

// unblockResurrection closes the block window and applies the
// keep-alive requests deferred while it was open.
func (h *Heap) unblockResurrection() {
	h.resurrection.unblock()
	h.keepAliveMu.Lock()
	pending := h.pendingKeepAlive
	h.pendingKeepAlive = nil
	h.keepAliveMu.Unlock()
	for _, addr := range pending {
		h.markLive(addr)
	}
}

// isObjectLive reports whether the object at addr survived this
// cycle's marking. Objects in pages allocated during the cycle are
// implicitly live: their page has no complete liveness information
// yet.
func (h *Heap) isObjectLive(addr Address) bool {
	page := h.pageOf(addr)
	if page == nil {
		return false
	}
	if !page.isRelocatable(h.seq()) {
		return true
	}
	return page.isObjectMarked(addr.untagged(), h.seq())
}

// SetSoftReferencePolicy selects whether dead soft referents are
// cleared this cycle.
func (h *Heap) SetSoftReferencePolicy(clear bool) {
	h.refs.SetSoftReferencePolicy(clear)
}

// ProcessNonStrongReferences processes reference objects and
// concurrent weak roots. Unless class unloading runs this cycle it
// also unblocks resurrection and then enqueues the discovered
// references — enqueue must happen after the unblock, else a consumer
// could observe a collected referent.
func (h *Heap) ProcessNonStrongReferences() {
	h.refs.ProcessReferences()

	h.weakRoots.ProcessConcurrentWeakRoots()

	if h.ShouldUnloadClass() {
		// finishNonStrongReferences completes the job after
		// unloading.
		return
	}

	h.unblockResurrection()
	h.refs.EnqueueReferences()
}

// FinishNonStrongReferences is the deferred tail of reference
// processing, used only when class unloading ran this cycle. Same
// unblock-then-enqueue ordering.
func (h *Heap) FinishNonStrongReferences() {
	if !h.ShouldUnloadClass() {
		fatalf("FinishNonStrongReferences without class unloading")
	}
	h.unblockResurrection()
	h.refs.EnqueueReferences()
}

// UnloadClass unloads the classes that died this cycle. Requires a
// safepoint and a positive ShouldUnloadClass decision.
func (h *Heap) UnloadClass() {
	h.assertAtSafepoint("UnloadClass")
	h.unloader.Unload()
}

// ShouldUnloadClass decides whether this cycle unloads classes: the
// global enable flag, the cause-forced table, and the configured
// frequency.
func (h *Heap) ShouldUnloadClass() bool {
	if !h.cfg.ClassUnloading {
		return false
	}
	cause := h.gcCause()
	for _, c := range h.cfg.UnloadCauses {
		if cause == c {
			return true
		}
	}
	freq := h.cfg.UnloadFrequency
	return freq != 0 && (h.seq()-1)%freq == 0
}

// SelectRelocationSet classifies every relocatable page, reclaims the
// garbage ones immediately, selects the evacuation candidates and
// installs their forwarding records. Page deletion is deferred for the
// duration of the directory walk so a page under inspection cannot be
// freed and reused concurrently.
func (h *Heap) SelectRelocationSet() {
	h.source.EnableDeferredDelete()

	selector := newRelocationSetSelector(h.seq())
	for page := range h.table.pages() {
		if !page.isRelocatable(h.seq()) {
			continue
		}
		if page.IsMarked(h.seq()) {
			selector.registerLivePage(page)
		} else {
			selector.registerGarbagePage(page)
			// Reclaim garbage immediately.
			h.FreePage(page, true)
		}
	}

	h.source.DisableDeferredDelete()

	selector.selectInto(&h.relocationSet)

	for f := range h.relocationSet.Forwardings() {
		h.forwardings.insert(f)
	}

	stats := selector.selectorStats()
	h.sink.Sample(SamplerRelocationSetPages, uint64(stats.SelectedPages))
	h.sink.Sample(SamplerReclaimed, h.Reclaimed())
}

// ResetRelocationSet removes the forwarding entries of the previous
// cycle's relocation set and clears the set. Idempotent; must run
// before the next selection so stale forwardings cannot be observed.
func (h *Heap) ResetRelocationSet() {
	for f := range h.relocationSet.Forwardings() {
		h.forwardings.remove(f)
	}
	h.relocationSet.reset()

	// With the forwardings gone, pages evacuated last cycle are safe
	// to reuse; release the delete token taken at relocate start.
	if h.relocateDefer {
		h.relocateDefer = false
		h.source.DisableDeferredDelete()
	}
}

// RelocateStart enters the relocate phase. Requires a safepoint.
func (h *Heap) RelocateStart() {
	h.assertAtSafepoint("RelocateStart")

	h.sink.Sample(SamplerUsedBeforeRelocation, h.Used())

	// Pages evacuated this cycle keep their forwardings installed
	// until the next reset; their address range must not be reused
	// before then, or a fresh object could alias a stale forwarding
	// entry.
	h.source.EnableDeferredDelete()
	h.relocateDefer = true

	h.flipToRemapped()
	h.allocator.remapTLABs()

	h.setPhase(PhaseRelocate, PhaseMarkCompleted)

	h.relocator.Start()
}

// Relocate evacuates the relocation set concurrently. Partial failure
// is recorded in statistics; unrelocated pages simply stay candidates
// for the next cycle.
func (h *Heap) Relocate() {
	success := h.relocator.Relocate(&h.relocationSet)

	h.sink.Sample(SamplerUsedAfterRelocation, h.Used())
	h.sink.Sample(SamplerReclaimed, h.Reclaimed())
	if !success {
		h.sink.Inc(CounterRelocationFailed)
	}
}

// RemapAddress follows the forwarding table. If the object has not
// (yet) been relocated the address is returned unchanged.
func (h *Heap) RemapAddress(addr Address) Address {
	f := h.forwardings.get(addr)
	if f == nil {
		return addr
	}
	if to, ok := f.find(addr); ok {
		return to
	}
	return addr
}

// ObjectIterate walks every allocated object. Requires a safepoint.
func (h *Heap) ObjectIterate(fn func(Address, *Object) bool) {
	h.assertAtSafepoint("ObjectIterate")
	for page := range h.table.pages() {
		for addr, obj := range page.objects() {
			if !fn(addr, obj) {
				return
			}
		}
	}
}

// RelocationSetDo walks the pages of the current relocation set.
func (h *Heap) RelocationSetDo(fn func(*Page) bool) {
	for f := range h.relocationSet.Forwardings() {
		if !fn(f.Page()) {
			return
		}
	}
}

// PageLive returns the marked object count and byte total of a page
// for the current cycle.
func (h *Heap) PageLive(p *Page) (objects int, bytes uint64) {
	return p.live(h.seq())
}

// PagesDo walks every page in the directory.
func (h *Heap) PagesDo(fn func(*Page) bool) {
	for page := range h.table.pages() {
		if !fn(page) {
			return
		}
	}
}

// Verify checks heap consistency. Only legal between mark end and
// relocate start — the one window where every reference is good.
func (h *Heap) Verify() {
	if h.Phase() != PhaseMarkCompleted {
		fatalf("verify outside MarkCompleted phase (%s)", h.Phase())
	}

	// Verify roots in parallel.
	roots := h.roots.snapshot()
	var next atomic.Int64
	h.workers.runParallel(newTask("VerifyRootsTask", func(worker int) {
		for {
			i := int(next.Add(1)) - 1
			if i >= len(roots) {
				return
			}
			if addr := roots[i]; addr != Nil && !h.IsIn(addr) {
				fatalf("verify: root 0x%x not in heap", uint64(addr))
			}
		}
	}))

	// Verify every reference field resolves to a page.
	h.ObjectIterate(func(addr Address, obj *Object) bool {
		for _, ref := range obj.Refs {
			if ref == Nil {
				continue
			}
			if h.pageOf(ref) == nil && h.forwardings.get(ref) == nil {
				fatalf("verify: field of 0x%x points outside heap: 0x%x", uint64(addr), uint64(ref))
			}
		}
		return true
	})
}

func (h *Heap) String() string {
	const m = 1 << 20
	return fmt.Sprintf("oolong heap used %dM, capacity %dM, max capacity %dM",
		h.Used()/m, h.Capacity()/m, h.MaxCapacity()/m)
}

// PrintExtendedOn writes the heap summary and every page. The page
// walk runs under a deferred-delete window.
func (h *Heap) PrintExtendedOn(w io.Writer) {
	fmt.Fprintln(w, h.String())

	h.source.EnableDeferredDelete()
	for page := range h.table.pages() {
		fmt.Fprintln(w, page.String())
	}
	h.source.DisableDeferredDelete()
}

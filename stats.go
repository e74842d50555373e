package oolong

import "sync"

// StatSampler identifies a sampled time-series statistic.
type StatSampler struct {
	Group string
	Name  string
}

// StatCounter identifies a monotonically increasing event counter.
type StatCounter struct {
	Group string
	Name  string
}

var (
	SamplerUsedBeforeMark       = StatSampler{"Memory", "Heap Used Before Mark"}
	SamplerUsedAfterMark        = StatSampler{"Memory", "Heap Used After Mark"}
	SamplerUsedBeforeRelocation = StatSampler{"Memory", "Heap Used Before Relocation"}
	SamplerUsedAfterRelocation  = StatSampler{"Memory", "Heap Used After Relocation"}
	SamplerReclaimed            = StatSampler{"Memory", "Heap Reclaimed"}
	SamplerRelocationSetPages   = StatSampler{"Relocation", "Relocation Set Pages"}
)

var (
	CounterUndoPageAlloc    = StatCounter{"Memory", "Undo Page Allocation"}
	CounterOutOfMemory      = StatCounter{"Memory", "Out Of Memory"}
	CounterRelocationFailed = StatCounter{"Relocation", "Relocation Failed"}
	CounterClassesUnloaded  = StatCounter{"Unload", "Classes Unloaded"}
)

// StatSink receives statistics events. Calls are fire-and-forget and
// must never affect control flow.
type StatSink interface {
	Sample(s StatSampler, value uint64)
	Inc(c StatCounter)
}

type discardStats struct{}

func (discardStats) Sample(StatSampler, uint64) {}
func (discardStats) Inc(StatCounter)            {}

// MemoryStats is an in-memory StatSink, mainly useful for tests and
// tools.
type MemoryStats struct {
	mu      sync.Mutex
	samples map[StatSampler][]uint64
	counts  map[StatCounter]uint64
}

func NewMemoryStats() *MemoryStats {
	return &MemoryStats{
		samples: make(map[StatSampler][]uint64),
		counts:  make(map[StatCounter]uint64),
	}
}

func (m *MemoryStats) Sample(s StatSampler, value uint64) {
	m.mu.Lock()
	m.samples[s] = append(m.samples[s], value)
	m.mu.Unlock()
}

func (m *MemoryStats) Inc(c StatCounter) {
	m.mu.Lock()
	m.counts[c]++
	m.mu.Unlock()
}

// Count returns the current value of a counter.
func (m *MemoryStats) Count(c StatCounter) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[c]
}

// Samples returns all recorded samples for s.
func (m *MemoryStats) Samples(s StatSampler) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.samples[s]...)
}

// LastSample returns the most recent sample for s.
func (m *MemoryStats) LastSample(s StatSampler) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.samples[s]
	if len(v) == 0 {
		return 0, false
	}
	return v[len(v)-1], true
}

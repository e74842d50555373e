package oolong

import (
	"iter"
	"slices"
)

// RelocationSet is the ordered collection of forwarding records for
// the pages chosen for evacuation in one cycle. It is rebuilt by
// selection and must be reset before the next cycle's selection runs.
type RelocationSet struct {
	forwardings []*Forwarding
}

func (rs *RelocationSet) Len() int { return len(rs.forwardings) }

func (rs *RelocationSet) Forwardings() iter.Seq[*Forwarding] {
	return func(yield func(*Forwarding) bool) {
		for _, f := range rs.forwardings {
			if !yield(f) {
				return
			}
		}
	}
}

func (rs *RelocationSet) install(pages []*Page) {
	rs.forwardings = rs.forwardings[:0]
	for _, p := range pages {
		rs.forwardings = append(rs.forwardings, newForwarding(p))
	}
}

func (rs *RelocationSet) reset() {
	rs.forwardings = rs.forwardings[:0]
}

// SelectorStats summarizes one selection pass.
type SelectorStats struct {
	LivePages     int
	GarbagePages  int
	SelectedPages int
	LiveBytes     uint64
	GarbageBytes  uint64
	RelocateBytes uint64
}

// fragmentationLimit is the minimum garbage percentage a live page
// must have to be worth evacuating.
const fragmentationLimit = 25

// relocationSetSelector classifies pages as live or garbage and picks
// the evacuation candidates: pages whose garbage fraction clears the
// fragmentation limit, densest garbage first (fewest live bytes to
// move per byte reclaimed). Large pages are never evacuated; they are
// reclaimed only when fully garbage.
type relocationSetSelector struct {
	seqnum uint32
	live   []*Page
	stats  SelectorStats
}

func newRelocationSetSelector(global uint32) *relocationSetSelector {
	return &relocationSetSelector{seqnum: global}
}

func (s *relocationSetSelector) registerLivePage(p *Page) {
	_, bytes := p.live(s.seqnum)
	s.stats.LivePages++
	s.stats.LiveBytes += bytes
	s.stats.GarbageBytes += p.size - bytes
	s.live = append(s.live, p)
}

func (s *relocationSetSelector) registerGarbagePage(p *Page) {
	s.stats.GarbagePages++
	s.stats.GarbageBytes += p.size
}

func (s *relocationSetSelector) selectInto(set *RelocationSet) {
	var selected []*Page
	for _, p := range s.live {
		if p.typ == PageTypeLarge {
			continue
		}
		_, bytes := p.live(s.seqnum)
		garbage := p.size - bytes
		if garbage*100 < p.size*fragmentationLimit {
			continue
		}
		selected = append(selected, p)
	}
	slices.SortFunc(selected, func(a, b *Page) int {
		_, la := a.live(s.seqnum)
		_, lb := b.live(s.seqnum)
		switch {
		case la < lb:
			return -1
		case la > lb:
			return 1
		}
		return 0
	})
	for _, p := range selected {
		_, bytes := p.live(s.seqnum)
		s.stats.SelectedPages++
		s.stats.RelocateBytes += bytes
	}
	set.install(selected)
}

func (s *relocationSetSelector) selectorStats() SelectorStats {
	return s.stats
}

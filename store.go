package glyphh

import (
	"sync"

	"github.com/glyphh/glyphh/encoder"
)

// Stats is a point-in-time snapshot of model metrics.
type Stats struct {
	Glyphs        int
	Searches      uint64
	Hits          uint64
	Misses        uint64
	HitRate       float64
	AvgScoreOnHit float64
	SymbolCache   int
}

// entry pairs a stored concept with its encoded glyph.
type entry struct {
	concept encoder.Concept
	glyph   *encoder.Glyph
}

// store holds the model's glyphs in insertion order with an ID index.
// Glyphs are immutable, so readers share them freely; the store only
// synchronizes the containers and counters.
type store struct {
	mu      sync.RWMutex
	entries []entry
	byID    map[string]int

	searches uint64
	hits     uint64
	misses   uint64
	scoreSum float64
}

func newStore() *store {
	return &store{byID: make(map[string]int)}
}

func (s *store) add(c encoder.Concept, g *encoder.Glyph) {
	s.mu.Lock()
	s.byID[g.ID] = len(s.entries)
	s.entries = append(s.entries, entry{concept: c, glyph: g})
	s.mu.Unlock()
}

func (s *store) get(id string) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return entry{}, false
	}
	return s.entries[i], true
}

// snapshot returns the entries in insertion order. The slice is a copy; the
// entries alias the shared immutable glyphs.
func (s *store) snapshot() []entry {
	s.mu.RLock()
	out := make([]entry, len(s.entries))
	copy(out, s.entries)
	s.mu.RUnlock()
	return out
}

func (s *store) len() int {
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()
	return n
}

func (s *store) recordSearch(hit bool, score float64) {
	s.mu.Lock()
	s.searches++
	if hit {
		s.hits++
		s.scoreSum += score
	} else {
		s.misses++
	}
	s.mu.Unlock()
}

func (s *store) stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hitRate := 0.0
	if s.searches > 0 {
		hitRate = float64(s.hits) / float64(s.searches)
	}
	avg := 0.0
	if s.hits > 0 {
		avg = s.scoreSum / float64(s.hits)
	}
	return Stats{
		Glyphs:        len(s.entries),
		Searches:      s.searches,
		Hits:          s.hits,
		Misses:        s.misses,
		HitRate:       hitRate,
		AvgScoreOnHit: avg,
	}
}

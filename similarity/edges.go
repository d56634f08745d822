package similarity

import (
	"time"

	"github.com/glyphh/glyphh/encoder"
)

// EdgeKind distinguishes relation edges between glyphs.
type EdgeKind string

const (
	// Spatial edges connect glyphs whose similarity clears a threshold.
	Spatial EdgeKind = "spatial"
	// Temporal edges connect consecutive glyphs of a chronological sequence.
	Temporal EdgeKind = "temporal"
)

// Edge is an explainability artifact for serving layers: a weighted relation
// between two glyphs, identified by glyph ID.
type Edge struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Weight   float64       `json:"weight"`
	Kind     EdgeKind      `json:"kind"`
	Interval time.Duration `json:"interval,omitempty"`
}

// EdgeGenerator derives edges from glyph sets.
type EdgeGenerator struct {
	calc     *Calculator
	minScore float64
}

// NewEdgeGenerator emits edges scored by calc, keeping only spatial edges at
// or above minScore.
func NewEdgeGenerator(calc *Calculator, minScore float64) *EdgeGenerator {
	return &EdgeGenerator{calc: calc, minScore: minScore}
}

// SpatialEdges compares every glyph pair and returns the edges whose score
// clears the generator's threshold. Pair order follows input order, so output
// is deterministic.
func (g *EdgeGenerator) SpatialEdges(glyphs []*encoder.Glyph) ([]Edge, error) {
	var edges []Edge
	for i := 0; i < len(glyphs); i++ {
		for j := i + 1; j < len(glyphs); j++ {
			res, err := g.calc.Compute(glyphs[i], glyphs[j], false)
			if err != nil {
				return nil, err
			}
			if res.Score >= g.minScore {
				edges = append(edges, Edge{
					From:   glyphs[i].ID,
					To:     glyphs[j].ID,
					Weight: res.Score,
					Kind:   Spatial,
				})
			}
		}
	}
	return edges, nil
}

// TemporalEdges links consecutive glyphs of a chronological history,
// weighting each edge by the pair's similarity and tagging it with the
// creation-time interval.
func (g *EdgeGenerator) TemporalEdges(history []*encoder.Glyph) ([]Edge, error) {
	var edges []Edge
	for i := 0; i+1 < len(history); i++ {
		res, err := g.calc.Compute(history[i], history[i+1], false)
		if err != nil {
			return nil, err
		}
		edges = append(edges, Edge{
			From:     history[i].ID,
			To:       history[i+1].ID,
			Weight:   res.Score,
			Kind:     Temporal,
			Interval: history[i+1].CreatedAt.Sub(history[i].CreatedAt),
		})
	}
	return edges, nil
}

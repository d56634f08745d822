package temporal

import (
	"context"
	"fmt"
	"sort"

	"github.com/glyphh/glyphh/encoder"
	"github.com/glyphh/glyphh/hdv"
)

// DriftSnapThreshold is the minimum similarity to the nearest known glyph for
// the drift-reduction pass to snap a candidate toward it. Below it a noisy
// candidate has no credible anchor and is left alone.
const DriftSnapThreshold = 0.3

// defaultRecentDeltas bounds how many trailing deltas seed candidate moves.
const defaultRecentDeltas = 3

// PredictOptions tunes one prediction run.
type PredictOptions struct {
	// Steps is how many intervals ahead to extrapolate. Minimum 1.
	Steps int
	// Level selects the vector to score candidates on: empty for the cortex,
	// otherwise a layer name.
	Level string
	// BeamWidth bounds the number of candidates kept per step. Minimum 1.
	BeamWidth int
	// DriftReduction snaps candidates toward the nearest known glyph after
	// each step to counteract accumulated binding noise.
	DriftReduction bool
	// RecentDeltas is how many trailing deltas generate moves (default 3).
	RecentDeltas int
	// Known is the cleanup codebook for drift reduction and tie-breaking.
	// Defaults to the history itself.
	Known []*encoder.Glyph
}

// Prediction is one extrapolated glyph with its accumulated confidence.
type Prediction struct {
	Glyph      *encoder.Glyph
	Confidence float64
}

// Predictor runs beam search over delta-extrapolated future glyphs.
type Predictor struct {
	enc   *Encoder
	space *hdv.Space
}

// NewPredictor builds a predictor over the encoder's vector space; the space
// supplies deterministic bundling for delta blending and drift cleanup.
func NewPredictor(space *hdv.Space) *Predictor {
	return &Predictor{enc: NewEncoder(), space: space}
}

// candidate lives in the beam work-list. order is the insertion index used as
// the final tie-break so pruning is auditable and deterministic.
type candidate struct {
	glyph     *encoder.Glyph
	conf      float64
	cleanDist float64
	order     int
}

// Predict extrapolates the history opts.Steps intervals forward and returns
// the final beam, most confident first. Fails with ErrInsufficientHistory on
// fewer than two glyphs and ErrInvalidBeamWidth on a width below one.
// Cancelling ctx truncates remaining steps and returns the best beam so far.
func (p *Predictor) Predict(ctx context.Context, history []*encoder.Glyph, opts PredictOptions) ([]Prediction, error) {
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: got %d glyphs, need at least 2", ErrInsufficientHistory, len(history))
	}
	if opts.BeamWidth < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBeamWidth, opts.BeamWidth)
	}
	if opts.Steps < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSteps, opts.Steps)
	}

	deltas := make([]*Delta, 0, len(history)-1)
	for i := 0; i+1 < len(history); i++ {
		d, err := p.enc.ComputeDelta(history[i], history[i+1])
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}

	k := opts.RecentDeltas
	if k <= 0 {
		k = defaultRecentDeltas
	}
	if k > len(deltas) {
		k = len(deltas)
	}
	moves := make([]*Delta, 0, k+1)
	moves = append(moves, deltas[len(deltas)-k:]...)
	if k > 1 {
		blend, err := p.blendDeltas(moves)
		if err != nil {
			return nil, err
		}
		moves = append(moves, blend)
	}

	known := opts.Known
	if len(known) == 0 {
		known = history
	}

	latest := history[len(history)-1]
	last := deltas[len(deltas)-1]
	beam := []candidate{{glyph: latest, conf: 1.0}}
	trend := latest

	for step := 0; step < opts.Steps; step++ {
		if ctx.Err() != nil {
			break
		}

		// The trend is the straight-line extrapolation of the last delta;
		// candidates are scored against it.
		next, err := p.enc.ApplyDelta(trend, last)
		if err != nil {
			return nil, err
		}
		trend = next

		var expanded []candidate
		for _, parent := range beam {
			for _, move := range moves {
				g, err := p.enc.ApplyDelta(parent.glyph, move)
				if err != nil {
					return nil, err
				}
				stepConf, err := p.trendConfidence(g, trend, opts.Level)
				if err != nil {
					return nil, err
				}
				cand := candidate{
					glyph: g,
					conf:  parent.conf * stepConf,
					order: len(expanded),
				}
				if opts.DriftReduction {
					if cand.glyph, cand.cleanDist, err = p.cleanup(g, known, opts.Level); err != nil {
						return nil, err
					}
				} else if cand.cleanDist, err = p.codebookDistance(g, known, opts.Level); err != nil {
					return nil, err
				}
				expanded = append(expanded, cand)
			}
		}

		// Candidate scoring above is parallelizable; selection must stay a
		// deterministic serial re-sort.
		sort.SliceStable(expanded, func(i, j int) bool {
			a, b := expanded[i], expanded[j]
			if a.conf != b.conf {
				return a.conf > b.conf
			}
			if a.cleanDist != b.cleanDist {
				return a.cleanDist < b.cleanDist
			}
			return a.order < b.order
		})
		if len(expanded) > opts.BeamWidth {
			expanded = expanded[:opts.BeamWidth]
		}
		beam = expanded
	}

	out := make([]Prediction, len(beam))
	for i, c := range beam {
		out[i] = Prediction{Glyph: c.glyph, Confidence: clamp01(c.conf)}
	}
	return out, nil
}

// trendConfidence maps the similarity between a candidate and the trend
// extrapolation onto [0, 1].
func (p *Predictor) trendConfidence(g, trend *encoder.Glyph, level string) (float64, error) {
	gv := levelVector(g, level)
	tv := levelVector(trend, level)
	if gv.IsZero() || tv.IsZero() {
		return 0, nil
	}
	sim, err := hdv.Similarity(gv, tv, hdv.Cosine)
	if err != nil {
		return 0, err
	}
	return (sim + 1) / 2, nil
}

// cleanup snaps g toward the nearest known glyph when the anchor is credible,
// bundling the candidate with the anchor at every level.
func (p *Predictor) cleanup(g *encoder.Glyph, known []*encoder.Glyph, level string) (*encoder.Glyph, float64, error) {
	nearest, dist, err := p.nearest(g, known, level)
	if err != nil {
		return nil, 0, err
	}
	if nearest == nil || 1-dist < DriftSnapThreshold {
		return g, dist, nil
	}

	snapped := *g
	snapped.Cortex, err = p.snapVector(g.Cortex, nearest.Cortex)
	if err != nil {
		return nil, 0, err
	}
	snapped.Layers = make([]encoder.LayerVectors, len(g.Layers))
	copy(snapped.Layers, g.Layers)
	for i := range snapped.Layers {
		anchor := nearest.Layer(snapped.Layers[i].Name)
		if anchor == nil {
			continue
		}
		if snapped.Layers[i].Vector, err = p.snapVector(snapped.Layers[i].Vector, anchor.Vector); err != nil {
			return nil, 0, err
		}
	}
	return &snapped, dist, nil
}

func (p *Predictor) snapVector(v, anchor hdv.Vector) (hdv.Vector, error) {
	if v.IsZero() || anchor.IsZero() {
		return v, nil
	}
	return p.space.Bundle(v, anchor)
}

func (p *Predictor) codebookDistance(g *encoder.Glyph, known []*encoder.Glyph, level string) (float64, error) {
	_, dist, err := p.nearest(g, known, level)
	return dist, err
}

// nearest returns the known glyph closest to g on the scoring level, plus the
// cosine distance (1 − similarity, rescaled to [0, 1]).
func (p *Predictor) nearest(g *encoder.Glyph, known []*encoder.Glyph, level string) (*encoder.Glyph, float64, error) {
	gv := levelVector(g, level)
	if gv.IsZero() {
		return nil, 1, nil
	}
	var best *encoder.Glyph
	bestSim := -1.0
	for _, k := range known {
		kv := levelVector(k, level)
		if kv.IsZero() {
			continue
		}
		sim, err := hdv.Similarity(gv, kv, hdv.Cosine)
		if err != nil {
			return nil, 0, err
		}
		if sim > bestSim {
			best, bestSim = k, sim
		}
	}
	if best == nil {
		return nil, 1, nil
	}
	return best, (1 - bestSim) / 2, nil
}

// blendDeltas bundles the recent deltas into a single averaged move.
func (p *Predictor) blendDeltas(recent []*Delta) (*Delta, error) {
	first := recent[0]
	out := &Delta{SpaceID: first.SpaceID, Interval: recent[len(recent)-1].Interval}

	// Deltas over glyphs with no encoded layers carry a zero cortex; there is
	// nothing to blend then, the same way bindCortex passes zero through.
	if !first.Cortex.IsZero() {
		cortexes := make([]hdv.Vector, len(recent))
		for i, d := range recent {
			cortexes[i] = d.Cortex
		}
		blended, err := p.space.Bundle(cortexes...)
		if err != nil {
			return nil, err
		}
		out.Cortex = blended
	}

	var err error
	for li := range first.Layers {
		ld := LayerDelta{Name: first.Layers[li].Name}
		vecs := make([]hdv.Vector, len(recent))
		for i, d := range recent {
			vecs[i] = d.Layers[li].Vector
		}
		if ld.Vector, err = p.space.Bundle(vecs...); err != nil {
			return nil, err
		}
		for si := range first.Layers[li].Segments {
			sd := SegmentDelta{Name: first.Layers[li].Segments[si].Name}
			svecs := make([]hdv.Vector, len(recent))
			for i, d := range recent {
				svecs[i] = d.Layers[li].Segments[si].Vector
			}
			if sd.Vector, err = p.space.Bundle(svecs...); err != nil {
				return nil, err
			}
			for ri := range first.Layers[li].Segments[si].Roles {
				rd := RoleDelta{Name: first.Layers[li].Segments[si].Roles[ri].Name}
				rvecs := make([]hdv.Vector, len(recent))
				for i, d := range recent {
					rvecs[i] = d.Layers[li].Segments[si].Roles[ri].Vector
				}
				if rd.Vector, err = p.space.Bundle(rvecs...); err != nil {
					return nil, err
				}
				sd.Roles = append(sd.Roles, rd)
			}
			ld.Segments = append(ld.Segments, sd)
		}
		out.Layers = append(out.Layers, ld)
	}
	return out, nil
}

func levelVector(g *encoder.Glyph, level string) hdv.Vector {
	if level == "" {
		return g.Cortex
	}
	if l := g.Layer(level); l != nil {
		return l.Vector
	}
	return hdv.Vector{}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

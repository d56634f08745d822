// Package similarity computes explainable hierarchical similarity between
// glyphs: a weighted score, a security-derived visibility flag, and an
// optional fact tree tracing every level's contribution.
package similarity

import (
	"fmt"

	"github.com/glyphh/glyphh/encoder"
	"github.com/glyphh/glyphh/hdv"
)

// AggregationRule documents how scores combine across the hierarchy.
// Role scores are the similarity of the two role vectors. Every level above
// blends the similarity of its own bundled vectors with the weighted mean of
// its children's scores, LevelBlend each way; weights are renormalized over
// children present in both glyphs. A branch with no common children
// contributes exactly 0. When the schema baked similarity weights in at
// encode time the child mean is unweighted, so weights are never counted
// twice.
const AggregationRule = "blend(own bundle similarity, weighted mean of common children)"

// LevelBlend is the share of a level's own vector similarity in its score;
// the remainder comes from the weighted child mean.
const LevelBlend = 0.5

// Options configures a Calculator.
type Options struct {
	// Metric selects cosine (default) or Hamming similarity.
	Metric hdv.Metric
	// Threshold is the minimum aggregated security score for a result to be
	// visible. Zero means every result is visible.
	Threshold float64
}

// Result is the outcome of one glyph comparison.
// Score is always computed; callers decide whether to honor Visible.
type Result struct {
	Score         float64
	SecurityScore float64
	Visible       bool
	Metric        hdv.Metric
	FactTree      *FactTree
}

// Calculator compares glyphs under a schema. The schema is passed at
// construction, not read from glyphs, so weight updates take effect on the
// next Calculator without re-encoding anything.
type Calculator struct {
	cfg  encoder.EncoderConfig
	opts Options
}

// NewCalculator builds a Calculator over the given schema.
func NewCalculator(cfg encoder.EncoderConfig, opts Options) *Calculator {
	return &Calculator{cfg: cfg.Normalized(), opts: opts}
}

// Compute compares two glyphs level by level, roles upward to cortex.
// Returns ErrIncompatibleSpace when the glyphs come from different
// (dimension, seed) spaces. Set withFactTree to receive the explanation tree;
// citation detail is omitted below any level whose security score fell under
// the visibility threshold.
func (c *Calculator) Compute(a, b *encoder.Glyph, withFactTree bool) (Result, error) {
	if a.SpaceID != b.SpaceID {
		return Result{}, fmt.Errorf("%w: %q vs %q", encoder.ErrIncompatibleSpace, a.SpaceID, b.SpaceID)
	}

	root := &FactNode{Level: LevelCortex, Name: "cortex", Weight: c.cfg.SimilarityWeight}
	var children []contribution
	for _, layer := range c.cfg.Layers {
		node, err := c.compareLayer(a.Layer(layer.Name), b.Layer(layer.Name), layer, b.Citation)
		if err != nil {
			return Result{}, err
		}
		root.Children = append(root.Children, node)
		if node.present {
			children = append(children, contribution{
				score:     node.Score,
				security:  node.SecurityScore,
				simWeight: layer.SimilarityWeight,
				secWeight: layer.SecurityWeight,
			})
		}
	}

	ownSim, hasOwn, err := c.ownSimilarity(a.Cortex, b.Cortex)
	if err != nil {
		return Result{}, err
	}
	root.Score, root.SecurityScore = c.fold(ownSim, hasOwn, children)
	root.present = hasOwn || len(children) > 0

	res := Result{
		Score:         root.Score,
		SecurityScore: root.SecurityScore,
		Visible:       c.opts.Threshold <= 0 || root.SecurityScore >= c.opts.Threshold,
		Metric:        c.opts.Metric,
	}
	if withFactTree {
		c.redact(root)
		res.FactTree = &FactTree{Root: root, Metric: c.opts.Metric}
	}
	return res, nil
}

type contribution struct {
	score     float64
	security  float64
	simWeight float64
	secWeight float64
}

func (c *Calculator) compareLayer(la, lb *encoder.LayerVectors, cfg encoder.LayerConfig, cit *encoder.Citation) (*FactNode, error) {
	node := &FactNode{Level: LevelLayer, Name: cfg.Name, Weight: cfg.SimilarityWeight}
	var children []contribution
	for _, seg := range cfg.Segments {
		var sa, sb *encoder.SegmentVectors
		if la != nil {
			sa = la.Segment(seg.Name)
		}
		if lb != nil {
			sb = lb.Segment(seg.Name)
		}
		child, err := c.compareSegment(sa, sb, seg, cit)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
		if child.present {
			children = append(children, contribution{
				score:     child.Score,
				security:  child.SecurityScore,
				simWeight: seg.SimilarityWeight,
				secWeight: seg.SecurityWeight,
			})
		}
	}

	var ownSim float64
	var hasOwn bool
	if la != nil && lb != nil {
		var err error
		ownSim, hasOwn, err = c.ownSimilarity(la.Vector, lb.Vector)
		if err != nil {
			return nil, err
		}
	}
	node.Score, node.SecurityScore = c.fold(ownSim, hasOwn, children)
	node.present = hasOwn || len(children) > 0
	return node, nil
}

func (c *Calculator) compareSegment(sa, sb *encoder.SegmentVectors, cfg encoder.SegmentConfig, cit *encoder.Citation) (*FactNode, error) {
	node := &FactNode{Level: LevelSegment, Name: cfg.Name, Weight: cfg.SimilarityWeight}
	var children []contribution
	for _, role := range cfg.Roles {
		child := &FactNode{Level: LevelRole, Name: role.Name, Weight: role.SimilarityWeight}
		var ra, rb *encoder.RoleVector
		if sa != nil {
			ra = sa.Role(role.Name)
		}
		if sb != nil {
			rb = sb.Role(role.Name)
		}
		if ra != nil && rb != nil {
			sim, err := hdv.Similarity(ra.Vector, rb.Vector, c.opts.Metric)
			if err != nil {
				return nil, err
			}
			child.Score = sim
			child.SecurityScore = role.SecurityWeight
			child.Citation = cit
			child.present = true
			children = append(children, contribution{
				score:     sim,
				security:  role.SecurityWeight,
				simWeight: role.SimilarityWeight,
				secWeight: role.SecurityWeight,
			})
		}
		node.Children = append(node.Children, child)
	}

	var ownSim float64
	var hasOwn bool
	if sa != nil && sb != nil {
		var err error
		ownSim, hasOwn, err = c.ownSimilarity(sa.Vector, sb.Vector)
		if err != nil {
			return nil, err
		}
	}
	node.Score, node.SecurityScore = c.fold(ownSim, hasOwn, children)
	node.present = hasOwn || len(children) > 0
	return node, nil
}

func (c *Calculator) ownSimilarity(a, b hdv.Vector) (float64, bool, error) {
	if a.IsZero() || b.IsZero() {
		return 0, false, nil
	}
	sim, err := hdv.Similarity(a, b, c.opts.Metric)
	if err != nil {
		return 0, false, err
	}
	return sim, true, nil
}

// fold combines a level's own bundle similarity with its children's
// contributions per AggregationRule. Security has no vector evidence and is
// always the weighted mean of child security scores.
func (c *Calculator) fold(ownSim float64, hasOwn bool, children []contribution) (float64, float64) {
	var childScore, simTotal float64
	var security, secTotal float64
	for _, ch := range children {
		sw := ch.simWeight
		if c.cfg.ApplyWeightsDuringEncoding {
			sw = 1
		}
		childScore += sw * ch.score
		simTotal += sw

		security += ch.secWeight * ch.security
		secTotal += ch.secWeight
	}
	if simTotal > 0 {
		childScore /= simTotal
	}
	if secTotal > 0 {
		security /= secTotal
	}

	switch {
	case hasOwn && len(children) > 0:
		return LevelBlend*ownSim + (1-LevelBlend)*childScore, security
	case hasOwn:
		return ownSim, security
	default:
		return childScore, security
	}
}

// redact strips citation detail below any node whose security score fails the
// visibility threshold. Scores stay: the shape of the explanation is visible,
// its provenance is not.
func (c *Calculator) redact(node *FactNode) {
	if c.opts.Threshold <= 0 {
		return
	}
	if node.SecurityScore < c.opts.Threshold {
		node.stripCitations()
		return
	}
	for _, child := range node.Children {
		c.redact(child)
	}
}

// Package glyphh encodes attributed facts into deterministic hyperdimensional
// glyphs and answers explainable similarity, verification, and prediction
// queries over them.
//
// Basic usage:
//
//	cfg := encoder.SingleSegment(10000, 42,
//		encoder.Role{Name: "type"},
//		encoder.Role{Name: "color"},
//	)
//	m, _ := glyphh.New(cfg)
//	m.Encode(encoder.Concept{Name: "red car", Attributes: map[string]string{"type": "car", "color": "red"}})
//	results, _ := m.SearchText("red car", 3)
package glyphh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/glyphh/glyphh/encoder"
	"github.com/glyphh/glyphh/hdv"
	"github.com/glyphh/glyphh/intent"
	"github.com/glyphh/glyphh/similarity"
	"github.com/glyphh/glyphh/temporal"
)

// ErrUnknownGlyph indicates a glyph ID not present in the model.
var ErrUnknownGlyph = errors.New("glyphh: unknown glyph id")

// DefaultSearchThreshold is the minimum score for a search to count as a hit.
const DefaultSearchThreshold = 0.15

// SearchResult is one ranked similarity match.
type SearchResult struct {
	Concept encoder.Concept
	GlyphID string
	Score   float64
}

// VerifyResult is the outcome of grounding a probe against the model: the
// best match, its full similarity result, and the fact tree explaining it.
type VerifyResult struct {
	Concept  encoder.Concept
	GlyphID  string
	Result   similarity.Result
	Verified bool
}

// QueryResult is the structured outcome of a natural-language query.
// Matched=false is the explicit signal that no pattern recognized the text
// and a caller may fall back to a generative model.
type QueryResult struct {
	Matched     bool
	MatchMethod string
	Intent      string
	Confidence  float64
	Target      string

	Results     []SearchResult
	FactTree    *similarity.FactTree
	Predictions []temporal.Prediction
	Count       int
}

// Model is a named container of encoded glyphs with query operations on top.
// Safe for concurrent use: config and glyphs are immutable, the store and the
// symbol cache are internally synchronized.
type Model struct {
	name    string
	version string
	meta    map[string]string

	enc     *encoder.Encoder
	calc    *similarity.Calculator
	intents *intent.Encoder
	store   *store
	log     *zap.Logger

	metric          hdv.Metric
	visibility      float64
	searchThreshold float64
}

// Option configures a Model.
type Option func(*Model)

// WithName sets the model name carried into exported bundles.
func WithName(name string) Option { return func(m *Model) { m.name = name } }

// WithVersion sets the model version carried into exported bundles.
func WithVersion(v string) Option { return func(m *Model) { m.version = v } }

// WithMetadata attaches opaque bundle metadata.
func WithMetadata(meta map[string]string) Option { return func(m *Model) { m.meta = meta } }

// WithLogger injects a structured logger (default zap.NewNop()).
func WithLogger(log *zap.Logger) Option { return func(m *Model) { m.log = log } }

// WithMetric selects the similarity metric (default cosine).
func WithMetric(metric hdv.Metric) Option { return func(m *Model) { m.metric = metric } }

// WithVisibilityThreshold sets the security score below which results are
// marked not visible (default 0: everything visible).
func WithVisibilityThreshold(t float64) Option { return func(m *Model) { m.visibility = t } }

// WithSearchThreshold sets the minimum score counting as a search hit
// (default 0.15).
func WithSearchThreshold(t float64) Option { return func(m *Model) { m.searchThreshold = t } }

// WithIntents replaces the default intent pattern library.
func WithIntents(e *intent.Encoder) Option { return func(m *Model) { m.intents = e } }

// New validates cfg and creates an empty Model.
func New(cfg encoder.EncoderConfig, opts ...Option) (*Model, error) {
	enc, err := encoder.New(cfg)
	if err != nil {
		return nil, err
	}
	m := &Model{
		name:            "glyphh-model",
		version:         "1.0.0",
		enc:             enc,
		store:           newStore(),
		log:             zap.NewNop(),
		searchThreshold: DefaultSearchThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.intents == nil {
		m.intents = intent.NewEncoder()
		m.intents.AddDefaults()
	}
	m.calc = similarity.NewCalculator(enc.Config(), similarity.Options{
		Metric:    m.metric,
		Threshold: m.visibility,
	})
	return m, nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Version returns the model version.
func (m *Model) Version() string { return m.version }

// Config returns the model's normalized encoding schema.
func (m *Model) Config() encoder.EncoderConfig { return m.enc.Config() }

// Encoder exposes the underlying encoder for advanced callers.
func (m *Model) Encoder() *encoder.Encoder { return m.enc }

// Len returns the number of stored glyphs.
func (m *Model) Len() int { return m.store.len() }

// Stats returns a point-in-time snapshot of model metrics.
func (m *Model) Stats() Stats {
	s := m.store.stats()
	s.SymbolCache = m.enc.CacheSize()
	return s
}

// SetWeights swaps the query-time weight schema without touching encoded
// glyphs. The new config must describe the same (dimension, seed) space.
func (m *Model) SetWeights(cfg encoder.EncoderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Dimension != m.enc.Config().Dimension || cfg.Seed != m.enc.Config().Seed {
		return fmt.Errorf("%w: weight updates must keep dimension and seed", encoder.ErrIncompatibleSpace)
	}
	m.calc = similarity.NewCalculator(cfg, similarity.Options{
		Metric:    m.metric,
		Threshold: m.visibility,
	})
	return nil
}

// Encode encodes the concept and stores the resulting glyph.
func (m *Model) Encode(c encoder.Concept) (*encoder.Glyph, error) {
	g, err := m.enc.Encode(c)
	if err != nil {
		return nil, err
	}
	m.store.add(c, g)
	m.log.Debug("encoded concept",
		zap.String("concept", c.Name),
		zap.String("glyph_id", g.ID),
	)
	return g, nil
}

// Glyph returns a stored glyph and its source concept by ID.
func (m *Model) Glyph(id string) (encoder.Concept, *encoder.Glyph, bool) {
	e, ok := m.store.get(id)
	return e.concept, e.glyph, ok
}

// Glyphs returns the stored glyphs in insertion order.
func (m *Model) Glyphs() []*encoder.Glyph {
	entries := m.store.snapshot()
	out := make([]*encoder.Glyph, len(entries))
	for i, e := range entries {
		out[i] = e.glyph
	}
	return out
}

// SimilaritySearch encodes the probe concept and ranks stored glyphs by
// hierarchical similarity, best first. The probe is not stored.
func (m *Model) SimilaritySearch(probe encoder.Concept, topK int) ([]SearchResult, error) {
	pg, err := m.enc.Encode(probe)
	if err != nil {
		return nil, err
	}
	return m.rank(topK, func(e entry) (float64, error) {
		res, err := m.calc.Compute(pg, e.glyph, false)
		if err != nil {
			return 0, err
		}
		return res.Score, nil
	})
}

// SearchText ranks stored glyphs against a free-text probe. The probe vector
// binds each normalized query token against every role symbol and bundles
// the results, then compares with each stored cortex. Deliberately
// schema-free, so any phrasing probes every role.
func (m *Model) SearchText(text string, topK int) ([]SearchResult, error) {
	probe, err := m.textProbe(text)
	if err != nil {
		return nil, err
	}
	return m.rank(topK, func(e entry) (float64, error) {
		if e.glyph.Cortex.IsZero() {
			return 0, nil
		}
		return hdv.Similarity(probe, e.glyph.Cortex, m.metric)
	})
}

// Verify grounds the probe concept in the model: the best hierarchical match
// with its fact tree. Verified is true when the score clears the search
// threshold and the result passed the visibility threshold. An empty model
// yields (nil, nil).
func (m *Model) Verify(probe encoder.Concept) (*VerifyResult, error) {
	pg, err := m.enc.Encode(probe)
	if err != nil {
		return nil, err
	}

	entries := m.store.snapshot()
	if len(entries) == 0 {
		m.store.recordSearch(false, 0)
		return nil, nil
	}

	best := -1
	var bestScore float64
	for i, e := range entries {
		res, err := m.calc.Compute(pg, e.glyph, false)
		if err != nil {
			return nil, err
		}
		if best < 0 || res.Score > bestScore {
			best, bestScore = i, res.Score
		}
	}

	full, err := m.calc.Compute(pg, entries[best].glyph, true)
	if err != nil {
		return nil, err
	}
	hit := full.Score >= m.searchThreshold
	m.store.recordSearch(hit, full.Score)
	m.log.Debug("verify",
		zap.String("probe", probe.Name),
		zap.String("matched", entries[best].concept.Name),
		zap.Float64("score", full.Score),
		zap.Bool("visible", full.Visible),
	)
	return &VerifyResult{
		Concept:  entries[best].concept,
		GlyphID:  entries[best].glyph.ID,
		Result:   full,
		Verified: hit && full.Visible,
	}, nil
}

// Predict extrapolates the chronological history identified by glyph IDs.
// All stored glyphs serve as the cleanup codebook unless opts.Known is set.
func (m *Model) Predict(ctx context.Context, glyphIDs []string, opts temporal.PredictOptions) ([]temporal.Prediction, error) {
	history := make([]*encoder.Glyph, len(glyphIDs))
	for i, id := range glyphIDs {
		e, ok := m.store.get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGlyph, id)
		}
		history[i] = e.glyph
	}
	if len(opts.Known) == 0 {
		opts.Known = m.Glyphs()
	}
	return temporal.NewPredictor(m.enc.Space()).Predict(ctx, history, opts)
}

// Edges derives the spatial edge set over all stored glyphs at the given
// score floor.
func (m *Model) Edges(minScore float64) ([]similarity.Edge, error) {
	return similarity.NewEdgeGenerator(m.calc, minScore).SpatialEdges(m.Glyphs())
}

// Query resolves free text through the intent patterns and dispatches to the
// matching operation. Matched=false (with a nil error) reports that no
// pattern recognized the text.
func (m *Model) Query(ctx context.Context, text string) (*QueryResult, error) {
	match, ok := m.intents.MatchIntent(text)
	if !ok {
		m.log.Debug("query unmatched", zap.String("text", text))
		return &QueryResult{}, nil
	}

	out := &QueryResult{
		Matched:     true,
		MatchMethod: "rules",
		Intent:      match.IntentType,
		Confidence:  match.Confidence,
		Target:      match.Values["target"],
	}
	m.log.Debug("query matched",
		zap.String("intent", match.IntentType),
		zap.Float64("confidence", match.Confidence),
		zap.String("target", out.Target),
	)

	switch match.IntentType {
	case intent.SimilaritySearch:
		results, err := m.SearchText(out.Target, templateInt(match.Template, "top_k", 5))
		if err != nil {
			return nil, err
		}
		out.Results = results

	case intent.FactTree:
		results, err := m.SearchText(out.Target, 1)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 || results[0].Score < m.searchThreshold {
			break
		}
		out.Results = results
		// Self-comparison of the best match yields the full per-level tree
		// with citations: the explanation of the stored fact itself.
		_, g, okG := m.Glyph(results[0].GlyphID)
		if !okG {
			break
		}
		full, err := m.calc.Compute(g, g, true)
		if err != nil {
			return nil, err
		}
		out.FactTree = full.FactTree

	case intent.Predict:
		ids := m.seriesIDs(out.Target)
		preds, err := m.Predict(ctx, ids, temporal.PredictOptions{
			Steps:     templateInt(match.Template, "steps", 1),
			BeamWidth: 3,
		})
		if err != nil {
			return nil, err
		}
		out.Predictions = preds

	case intent.Count:
		if out.Target == "" {
			out.Count = m.Len()
		} else {
			out.Count = len(m.seriesIDs(out.Target))
		}
	}
	return out, nil
}

// templateInt reads an integer template value. Templates registered in
// process carry ints; templates restored from a bundle went through JSON,
// where every number decodes as float64. Both forms must resolve.
func templateInt(tpl map[string]any, key string, def int) int {
	switch v := tpl[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// seriesIDs returns stored glyph IDs whose concept name contains the target,
// in insertion (chronological) order. An empty target selects everything.
func (m *Model) seriesIDs(target string) []string {
	target = intent.Normalize(target)
	var ids []string
	for _, e := range m.store.snapshot() {
		if target == "" || strings.Contains(intent.Normalize(e.concept.Name), target) {
			ids = append(ids, e.glyph.ID)
		}
	}
	return ids
}

// textProbe builds a schema-free probe vector from free text: every
// normalized token is bound against every role symbol of the schema and the
// bindings are bundled. A token that is the value of some role then shares
// that role's exact binding with the stored glyph, whichever role holds it.
func (m *Model) textProbe(text string) (hdv.Vector, error) {
	tokens := strings.Fields(intent.Normalize(text))
	if len(tokens) == 0 {
		return hdv.Vector{}, fmt.Errorf("glyphh: empty query text: %w", hdv.ErrEmptyInput)
	}
	roles := m.roleNames()
	vecs := make([]hdv.Vector, 0, len(tokens)*len(roles))
	for _, tok := range tokens {
		val := m.enc.ValueSymbol(tok)
		for _, role := range roles {
			bound, err := hdv.Bind(m.enc.RoleSymbol(role), val)
			if err != nil {
				return hdv.Vector{}, err
			}
			vecs = append(vecs, bound)
		}
	}
	return m.enc.Space().Bundle(vecs...)
}

// roleNames lists every role in the schema in declaration order.
func (m *Model) roleNames() []string {
	var names []string
	for _, layer := range m.enc.Config().Layers {
		for _, seg := range layer.Segments {
			for _, role := range seg.Roles {
				names = append(names, role.Name)
			}
		}
	}
	return names
}

// rank scores every stored entry and returns the topK, best first, with
// score ties resolved by insertion order.
func (m *Model) rank(topK int, score func(entry) (float64, error)) ([]SearchResult, error) {
	if topK < 1 {
		topK = 1
	}
	entries := m.store.snapshot()
	results := make([]SearchResult, 0, len(entries))
	for _, e := range entries {
		s, err := score(e)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{
			Concept: e.concept,
			GlyphID: e.glyph.ID,
			Score:   s,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	hit := len(results) > 0 && results[0].Score >= m.searchThreshold
	top := 0.0
	if len(results) > 0 {
		top = results[0].Score
	}
	m.store.recordSearch(hit, top)
	return results, nil
}

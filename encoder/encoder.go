package encoder

import (
	"time"

	"github.com/google/uuid"

	"github.com/glyphh/glyphh/hdv"
)

// Symbol key namespaces. Role and value symbols must come from independent
// streams so that a value string colliding with a role name stays unrelated.
const (
	roleKeyPrefix  = "role:"
	valueKeyPrefix = "val:"
)

// Encoder encodes Concepts into Glyphs under a fixed, validated schema.
// Safe for concurrent use; the symbol cache is the only shared mutable state
// and is synchronized inside hdv.Space.
type Encoder struct {
	cfg   EncoderConfig
	space *hdv.Space
}

// New validates cfg and builds an Encoder over a fresh symbol space.
func New(cfg EncoderConfig) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalized()
	return &Encoder{
		cfg:   cfg,
		space: hdv.NewSpace(cfg.Dimension, cfg.Seed),
	}, nil
}

// Config returns the normalized schema the encoder was built from.
func (e *Encoder) Config() EncoderConfig { return e.cfg }

// Space exposes the encoder's vector space for advanced callers composing
// custom structures with Bind/Bundle/WeightedBundle directly.
func (e *Encoder) Space() *hdv.Space { return e.space }

// ClearCache discards memoized symbols. Subsequent encodes regenerate
// bit-identical symbols.
func (e *Encoder) ClearCache() { e.space.ClearCache() }

// CacheSize reports the symbol cache entry count. Diagnostic only.
func (e *Encoder) CacheSize() int { return e.space.CacheSize() }

// RoleSymbol returns the deterministic symbol for a role name.
func (e *Encoder) RoleSymbol(name string) hdv.Vector {
	return e.space.Symbol(roleKeyPrefix + name)
}

// ValueSymbol returns the deterministic symbol for an attribute value.
func (e *Encoder) ValueSymbol(value string) hdv.Vector {
	return e.space.Symbol(valueKeyPrefix + value)
}

// Encode builds a Glyph for the concept. For each role the concept's value is
// bound to the role symbol; role vectors bundle into segments, segments into
// layers, layers into the cortex. A missing primary-id value fails with
// *MissingAttributeError; missing non-primary roles are simply absent from
// the glyph. Identical (concept, config, seed) inputs produce bit-identical
// vectors at every level; only ID and CreatedAt differ per call.
func (e *Encoder) Encode(c Concept) (*Glyph, error) {
	g := &Glyph{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SpaceID:   e.space.ID(),
		Name:      c.Name,
		CreatedAt: time.Now().UTC(),
		Citation:  c.citation(),
	}

	var layerPairs []hdv.Weighted
	for _, layer := range e.cfg.Layers {
		lv, err := e.encodeLayer(c, layer)
		if err != nil {
			return nil, err
		}
		if lv == nil {
			continue
		}
		g.Layers = append(g.Layers, *lv)
		layerPairs = append(layerPairs, hdv.Weighted{Vec: lv.Vector, Weight: layer.SimilarityWeight})
	}

	if len(layerPairs) > 0 {
		cortex, err := e.bundle(layerPairs)
		if err != nil {
			return nil, err
		}
		g.Cortex = cortex
	}
	return g, nil
}

func (e *Encoder) encodeLayer(c Concept, layer LayerConfig) (*LayerVectors, error) {
	lv := LayerVectors{Name: layer.Name}
	var segPairs []hdv.Weighted

	for _, seg := range layer.Segments {
		sv, err := e.encodeSegment(c, layer.Name, seg)
		if err != nil {
			return nil, err
		}
		if sv == nil {
			continue
		}
		lv.Segments = append(lv.Segments, *sv)
		segPairs = append(segPairs, hdv.Weighted{Vec: sv.Vector, Weight: seg.SimilarityWeight})
	}

	if len(segPairs) == 0 {
		return nil, nil
	}
	vec, err := e.bundle(segPairs)
	if err != nil {
		return nil, err
	}
	lv.Vector = vec
	return &lv, nil
}

func (e *Encoder) encodeSegment(c Concept, layerName string, seg SegmentConfig) (*SegmentVectors, error) {
	sv := SegmentVectors{Name: seg.Name}
	var rolePairs []hdv.Weighted

	for _, role := range seg.Roles {
		value, ok := c.value(role.Name)
		if !ok {
			if role.PrimaryID {
				return nil, &MissingAttributeError{
					Concept: c.Name,
					Layer:   layerName,
					Segment: seg.Name,
					Role:    role.Name,
				}
			}
			continue
		}
		vec, err := hdv.Bind(e.RoleSymbol(role.Name), e.ValueSymbol(value))
		if err != nil {
			return nil, err
		}
		sv.Roles = append(sv.Roles, RoleVector{Name: role.Name, Vector: vec})
		rolePairs = append(rolePairs, hdv.Weighted{Vec: vec, Weight: role.SimilarityWeight})
	}

	if len(rolePairs) == 0 {
		return nil, nil
	}
	vec, err := e.bundle(rolePairs)
	if err != nil {
		return nil, err
	}
	sv.Vector = vec
	return &sv, nil
}

// bundle applies similarity weights during bundling only when the schema asks
// for baked-in weights; otherwise weights are left to query time.
func (e *Encoder) bundle(pairs []hdv.Weighted) (hdv.Vector, error) {
	if e.cfg.ApplyWeightsDuringEncoding {
		return e.space.WeightedBundle(pairs...)
	}
	vecs := make([]hdv.Vector, len(pairs))
	for i, p := range pairs {
		vecs[i] = p.Vec
	}
	return e.space.Bundle(vecs...)
}

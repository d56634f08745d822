// Package temporal computes change vectors between glyphs of one schema over
// time and extrapolates hypothetical future glyphs from them.
package temporal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glyphh/glyphh/encoder"
	"github.com/glyphh/glyphh/hdv"
)

// RoleDelta is the change vector of one role.
type RoleDelta struct {
	Name   string     `json:"name"`
	Vector hdv.Vector `json:"vector"`
}

// SegmentDelta is the change vector of one segment and its roles.
type SegmentDelta struct {
	Name   string      `json:"name"`
	Vector hdv.Vector  `json:"vector"`
	Roles  []RoleDelta `json:"roles"`
}

// LayerDelta is the change vector of one layer and its segments.
type LayerDelta struct {
	Name     string         `json:"name"`
	Vector   hdv.Vector     `json:"vector"`
	Segments []SegmentDelta `json:"segments"`
}

// Delta is the vector-valued diff between two glyphs of the same space and
// schema, tagged with the interval it represents. Immutable.
// Change vectors are XOR binds, so applying a delta to its first glyph
// reproduces the second bit-exactly.
type Delta struct {
	SpaceID  string        `json:"space_id"`
	Interval time.Duration `json:"interval"`
	Cortex   hdv.Vector    `json:"cortex"`
	Layers   []LayerDelta  `json:"layers"`
}

// Encoder derives and applies Deltas. Stateless and safe for concurrent use.
type Encoder struct{}

// NewEncoder returns a temporal encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// ComputeDelta captures the change from v1 to v2 at every hierarchy level.
// Fails with ErrIncompatibleSpace across spaces and ErrSchemaMismatch when
// the glyph hierarchies do not align.
func (e *Encoder) ComputeDelta(v1, v2 *encoder.Glyph) (*Delta, error) {
	if v1.SpaceID != v2.SpaceID {
		return nil, fmt.Errorf("%w: %q vs %q", encoder.ErrIncompatibleSpace, v1.SpaceID, v2.SpaceID)
	}
	if !encoder.SameSchema(v1, v2) {
		return nil, fmt.Errorf("%w: %q vs %q", encoder.ErrSchemaMismatch, v1.Name, v2.Name)
	}

	d := &Delta{
		SpaceID:  v1.SpaceID,
		Interval: v2.CreatedAt.Sub(v1.CreatedAt),
	}
	var err error
	if d.Cortex, err = bindCortex(v2.Cortex, v1.Cortex); err != nil {
		return nil, err
	}
	for i := range v1.Layers {
		l1, l2 := &v1.Layers[i], &v2.Layers[i]
		ld := LayerDelta{Name: l1.Name}
		if ld.Vector, err = hdv.Bind(l2.Vector, l1.Vector); err != nil {
			return nil, err
		}
		for j := range l1.Segments {
			s1, s2 := &l1.Segments[j], &l2.Segments[j]
			sd := SegmentDelta{Name: s1.Name}
			if sd.Vector, err = hdv.Bind(s2.Vector, s1.Vector); err != nil {
				return nil, err
			}
			for k := range s1.Roles {
				rd := RoleDelta{Name: s1.Roles[k].Name}
				if rd.Vector, err = hdv.Bind(s2.Roles[k].Vector, s1.Roles[k].Vector); err != nil {
					return nil, err
				}
				sd.Roles = append(sd.Roles, rd)
			}
			ld.Segments = append(ld.Segments, sd)
		}
		d.Layers = append(d.Layers, ld)
	}
	return d, nil
}

// ApplyDelta extrapolates one step: a new hypothetical glyph whose vectors
// are g's combined with d's change vectors at every level. The result carries
// a fresh ID and a CreatedAt advanced by the delta's interval.
func (e *Encoder) ApplyDelta(g *encoder.Glyph, d *Delta) (*encoder.Glyph, error) {
	if g.SpaceID != d.SpaceID {
		return nil, fmt.Errorf("%w: %q vs %q", encoder.ErrIncompatibleSpace, g.SpaceID, d.SpaceID)
	}
	if !alignedWithDelta(g, d) {
		return nil, fmt.Errorf("%w: glyph %q does not align with delta", encoder.ErrSchemaMismatch, g.Name)
	}

	out := &encoder.Glyph{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SpaceID:   g.SpaceID,
		Name:      g.Name,
		CreatedAt: g.CreatedAt.Add(d.Interval),
	}
	var err error
	if out.Cortex, err = bindCortex(g.Cortex, d.Cortex); err != nil {
		return nil, err
	}
	for i := range g.Layers {
		lg, ld := &g.Layers[i], &d.Layers[i]
		nl := encoder.LayerVectors{Name: lg.Name}
		if nl.Vector, err = hdv.Bind(lg.Vector, ld.Vector); err != nil {
			return nil, err
		}
		for j := range lg.Segments {
			sg, sd := &lg.Segments[j], &ld.Segments[j]
			ns := encoder.SegmentVectors{Name: sg.Name}
			if ns.Vector, err = hdv.Bind(sg.Vector, sd.Vector); err != nil {
				return nil, err
			}
			for k := range sg.Roles {
				var rv hdv.Vector
				if rv, err = hdv.Bind(sg.Roles[k].Vector, sd.Roles[k].Vector); err != nil {
					return nil, err
				}
				ns.Roles = append(ns.Roles, encoder.RoleVector{Name: sg.Roles[k].Name, Vector: rv})
			}
			nl.Segments = append(nl.Segments, ns)
		}
		out.Layers = append(out.Layers, nl)
	}
	return out, nil
}

// bindCortex binds two cortex vectors, passing the zero cortex of a glyph
// with no encoded layers through unchanged.
func bindCortex(a, b hdv.Vector) (hdv.Vector, error) {
	if a.IsZero() && b.IsZero() {
		return hdv.Vector{}, nil
	}
	return hdv.Bind(a, b)
}

// alignedWithDelta checks that the glyph and delta hierarchies carry the same
// names in the same order.
func alignedWithDelta(g *encoder.Glyph, d *Delta) bool {
	if len(g.Layers) != len(d.Layers) {
		return false
	}
	for i := range g.Layers {
		lg, ld := &g.Layers[i], &d.Layers[i]
		if lg.Name != ld.Name || len(lg.Segments) != len(ld.Segments) {
			return false
		}
		for j := range lg.Segments {
			sg, sd := &lg.Segments[j], &ld.Segments[j]
			if sg.Name != sd.Name || len(sg.Roles) != len(sd.Roles) {
				return false
			}
			for k := range sg.Roles {
				if sg.Roles[k].Name != sd.Roles[k].Name {
					return false
				}
			}
		}
	}
	return true
}

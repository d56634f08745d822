package encoder

import (
	"time"

	"github.com/glyphh/glyphh/hdv"
)

// RoleVector is one encoded role: the role symbol bound to the value symbol.
type RoleVector struct {
	Name   string     `json:"name"`
	Vector hdv.Vector `json:"vector"`
}

// SegmentVectors is one encoded segment and the roles bundled into it.
type SegmentVectors struct {
	Name   string       `json:"name"`
	Vector hdv.Vector   `json:"vector"`
	Roles  []RoleVector `json:"roles"`
}

// LayerVectors is one encoded layer and the segments bundled into it.
type LayerVectors struct {
	Name     string           `json:"name"`
	Vector   hdv.Vector       `json:"vector"`
	Segments []SegmentVectors `json:"segments"`
}

// Glyph is the encoded form of one Concept under one EncoderConfig.
// Immutable once produced; re-encoding yields a new Glyph with a new ID.
// Absent roles/segments/layers are omitted rather than stored as zero vectors.
type Glyph struct {
	ID        string         `json:"id"`
	SpaceID   string         `json:"space_id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	Cortex    hdv.Vector     `json:"cortex"`
	Layers    []LayerVectors `json:"layers"`
	Citation  *Citation      `json:"citation,omitempty"`
}

// Layer returns the named layer, or nil if the glyph does not carry it.
func (g *Glyph) Layer(name string) *LayerVectors {
	for i := range g.Layers {
		if g.Layers[i].Name == name {
			return &g.Layers[i]
		}
	}
	return nil
}

// Segment returns the named segment, or nil.
func (l *LayerVectors) Segment(name string) *SegmentVectors {
	for i := range l.Segments {
		if l.Segments[i].Name == name {
			return &l.Segments[i]
		}
	}
	return nil
}

// Role returns the named role vector, or nil.
func (s *SegmentVectors) Role(name string) *RoleVector {
	for i := range s.Roles {
		if s.Roles[i].Name == name {
			return &s.Roles[i]
		}
	}
	return nil
}

// SameSchema reports whether two glyphs carry identically named hierarchies.
// Vector contents may differ; only the shape must align.
func SameSchema(a, b *Glyph) bool {
	if len(a.Layers) != len(b.Layers) {
		return false
	}
	for i := range a.Layers {
		la, lb := &a.Layers[i], &b.Layers[i]
		if la.Name != lb.Name || len(la.Segments) != len(lb.Segments) {
			return false
		}
		for j := range la.Segments {
			sa, sb := &la.Segments[j], &lb.Segments[j]
			if sa.Name != sb.Name || len(sa.Roles) != len(sb.Roles) {
				return false
			}
			for k := range sa.Roles {
				if sa.Roles[k].Name != sb.Roles[k].Name {
					return false
				}
			}
		}
	}
	return true
}

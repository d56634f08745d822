package encoder

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates an invalid encoding schema, rejected before
	// any encoding happens.
	ErrConfiguration = errors.New("encoder: invalid configuration")
	// ErrIncompatibleSpace indicates operands from different (dimension, seed)
	// vector spaces.
	ErrIncompatibleSpace = errors.New("encoder: glyphs belong to different spaces")
	// ErrSchemaMismatch indicates glyphs whose layer/segment/role hierarchies
	// do not align.
	ErrSchemaMismatch = errors.New("encoder: glyph schemas do not align")
)

// MissingAttributeError reports a primary-id role with no value on the concept.
type MissingAttributeError struct {
	Concept string
	Layer   string
	Segment string
	Role    string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("encoder: concept %q has no value for primary-id role %q (layer %q, segment %q)",
		e.Concept, e.Role, e.Layer, e.Segment)
}

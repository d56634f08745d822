package encoder

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Role binds one concept attribute into its segment.
// A zero weight means "unset" and defaults to 1.0 during normalization, as a
// role that must never contribute should simply be left out of the schema.
type Role struct {
	Name             string  `json:"name" yaml:"name" validate:"required"`
	SimilarityWeight float64 `json:"similarity_weight,omitempty" yaml:"similarity_weight,omitempty" validate:"gte=0,lte=1"`
	SecurityWeight   float64 `json:"security_weight,omitempty" yaml:"security_weight,omitempty" validate:"gte=0,lte=1"`
	PrimaryID        bool    `json:"primary_id,omitempty" yaml:"primary_id,omitempty"`
}

// SegmentConfig groups related roles inside a layer.
type SegmentConfig struct {
	Name             string  `json:"name" yaml:"name" validate:"required"`
	SimilarityWeight float64 `json:"similarity_weight,omitempty" yaml:"similarity_weight,omitempty" validate:"gte=0,lte=1"`
	SecurityWeight   float64 `json:"security_weight,omitempty" yaml:"security_weight,omitempty" validate:"gte=0,lte=1"`
	Roles            []Role  `json:"roles" yaml:"roles" validate:"min=1,dive"`
}

// LayerConfig groups segments under the cortex.
type LayerConfig struct {
	Name             string          `json:"name" yaml:"name" validate:"required"`
	SimilarityWeight float64         `json:"similarity_weight,omitempty" yaml:"similarity_weight,omitempty" validate:"gte=0,lte=1"`
	SecurityWeight   float64         `json:"security_weight,omitempty" yaml:"security_weight,omitempty" validate:"gte=0,lte=1"`
	Segments         []SegmentConfig `json:"segments" yaml:"segments" validate:"min=1,dive"`
}

// EncoderConfig is the hierarchical encoding schema. It is validated and
// normalized when an Encoder is built from it and never mutated afterwards.
type EncoderConfig struct {
	Dimension                  int           `json:"dimension" yaml:"dimension" validate:"gt=0"`
	Seed                       uint64        `json:"seed" yaml:"seed"`
	SimilarityWeight           float64       `json:"similarity_weight,omitempty" yaml:"similarity_weight,omitempty" validate:"gte=0,lte=1"`
	SecurityWeight             float64       `json:"security_weight,omitempty" yaml:"security_weight,omitempty" validate:"gte=0,lte=1"`
	ApplyWeightsDuringEncoding bool          `json:"apply_weights_during_encoding,omitempty" yaml:"apply_weights_during_encoding,omitempty"`
	Layers                     []LayerConfig `json:"layers" yaml:"layers" validate:"min=1,dive"`
}

// SingleSegment builds the flat one-layer, one-segment schema used by models
// that only care about a bag of attributes.
func SingleSegment(dimension int, seed uint64, roles ...Role) EncoderConfig {
	return EncoderConfig{
		Dimension: dimension,
		Seed:      seed,
		Layers: []LayerConfig{{
			Name: "content",
			Segments: []SegmentConfig{{
				Name:  "attributes",
				Roles: roles,
			}},
		}},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks range constraints and structural invariants: positive
// dimension, weights in [0,1], at least one layer/segment/role, unique names
// among siblings, and at most one primary-id role per segment.
func (c EncoderConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	layerNames := make(map[string]struct{}, len(c.Layers))
	for _, layer := range c.Layers {
		if _, dup := layerNames[layer.Name]; dup {
			return fmt.Errorf("%w: duplicate layer %q", ErrConfiguration, layer.Name)
		}
		layerNames[layer.Name] = struct{}{}

		segNames := make(map[string]struct{}, len(layer.Segments))
		for _, seg := range layer.Segments {
			if _, dup := segNames[seg.Name]; dup {
				return fmt.Errorf("%w: duplicate segment %q in layer %q", ErrConfiguration, seg.Name, layer.Name)
			}
			segNames[seg.Name] = struct{}{}

			roleNames := make(map[string]struct{}, len(seg.Roles))
			primaries := 0
			for _, role := range seg.Roles {
				if _, dup := roleNames[role.Name]; dup {
					return fmt.Errorf("%w: duplicate role %q in segment %q", ErrConfiguration, role.Name, seg.Name)
				}
				roleNames[role.Name] = struct{}{}
				if role.PrimaryID {
					primaries++
				}
			}
			if primaries > 1 {
				return fmt.Errorf("%w: segment %q has %d primary-id roles, at most one allowed", ErrConfiguration, seg.Name, primaries)
			}
		}
	}
	return nil
}

// Normalized returns a deep copy with unset (zero) weights defaulted to 1.0.
// Query-time consumers (the similarity calculator, the predictor) normalize
// the config they are handed so hot-updated weights behave like encode-time
// ones.
func (c EncoderConfig) Normalized() EncoderConfig {
	out := c
	out.SimilarityWeight = defaultWeight(c.SimilarityWeight)
	out.SecurityWeight = defaultWeight(c.SecurityWeight)
	out.Layers = make([]LayerConfig, len(c.Layers))
	for i, layer := range c.Layers {
		nl := layer
		nl.SimilarityWeight = defaultWeight(layer.SimilarityWeight)
		nl.SecurityWeight = defaultWeight(layer.SecurityWeight)
		nl.Segments = make([]SegmentConfig, len(layer.Segments))
		for j, seg := range layer.Segments {
			ns := seg
			ns.SimilarityWeight = defaultWeight(seg.SimilarityWeight)
			ns.SecurityWeight = defaultWeight(seg.SecurityWeight)
			ns.Roles = make([]Role, len(seg.Roles))
			for k, role := range seg.Roles {
				nr := role
				nr.SimilarityWeight = defaultWeight(role.SimilarityWeight)
				nr.SecurityWeight = defaultWeight(role.SecurityWeight)
				ns.Roles[k] = nr
			}
			nl.Segments[j] = ns
		}
		out.Layers[i] = nl
	}
	return out
}

func defaultWeight(w float64) float64 {
	if w == 0 {
		return 1.0
	}
	return w
}

package encoder_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphh/glyphh/encoder"
	"github.com/glyphh/glyphh/hdv"
)

func carConfig() encoder.EncoderConfig {
	return encoder.SingleSegment(10000, 42,
		encoder.Role{Name: "type"},
		encoder.Role{Name: "color"},
	)
}

func redCar() encoder.Concept {
	return encoder.Concept{
		Name:       "red car",
		Attributes: map[string]string{"type": "car", "color": "red"},
	}
}

func TestEncode_Deterministic(t *testing.T) {
	enc, err := encoder.New(carConfig())
	require.NoError(t, err)

	a, err := enc.Encode(redCar())
	require.NoError(t, err)
	b, err := enc.Encode(redCar())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID, "re-encoding must mint a new identifier")
	assert.Equal(t, a.SpaceID, b.SpaceID)
	assert.True(t, hdv.Equal(a.Cortex, b.Cortex), "cortex must be bit-identical")
	require.Len(t, a.Layers, 1)
	assert.True(t, hdv.Equal(a.Layers[0].Vector, b.Layers[0].Vector))
	assert.True(t, hdv.Equal(a.Layers[0].Segments[0].Vector, b.Layers[0].Segments[0].Vector))
	for i := range a.Layers[0].Segments[0].Roles {
		assert.True(t, hdv.Equal(
			a.Layers[0].Segments[0].Roles[i].Vector,
			b.Layers[0].Segments[0].Roles[i].Vector,
		))
	}
}

func TestEncode_DeterministicAcrossEncoders(t *testing.T) {
	e1, err := encoder.New(carConfig())
	require.NoError(t, err)
	e2, err := encoder.New(carConfig())
	require.NoError(t, err)

	a, err := e1.Encode(redCar())
	require.NoError(t, err)
	b, err := e2.Encode(redCar())
	require.NoError(t, err)
	assert.True(t, hdv.Equal(a.Cortex, b.Cortex), "independent encoders with the same seed must agree")
}

func TestEncode_SeedIsolation(t *testing.T) {
	cfgA := carConfig()
	cfgB := carConfig()
	cfgB.Seed = 1042

	e1, err := encoder.New(cfgA)
	require.NoError(t, err)
	e2, err := encoder.New(cfgB)
	require.NoError(t, err)

	a, err := e1.Encode(redCar())
	require.NoError(t, err)
	b, err := e2.Encode(redCar())
	require.NoError(t, err)

	assert.NotEqual(t, a.SpaceID, b.SpaceID)
	sim, err := hdv.Similarity(a.Cortex, b.Cortex, hdv.Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 0, sim, 0.1, "same concept under different seeds must be unrelated")
}

func TestEncode_MissingPrimaryID(t *testing.T) {
	cfg := encoder.SingleSegment(10000, 42,
		encoder.Role{Name: "sku", PrimaryID: true},
		encoder.Role{Name: "color"},
	)
	enc, err := encoder.New(cfg)
	require.NoError(t, err)

	_, err = enc.Encode(encoder.Concept{
		Name:       "mystery item",
		Attributes: map[string]string{"color": "red"},
	})
	var missing *encoder.MissingAttributeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "sku", missing.Role)
	assert.Equal(t, "mystery item", missing.Concept)
}

func TestEncode_MissingNonPrimaryRoleSkipped(t *testing.T) {
	enc, err := encoder.New(carConfig())
	require.NoError(t, err)

	g, err := enc.Encode(encoder.Concept{
		Name:       "colorless car",
		Attributes: map[string]string{"type": "car"},
	})
	require.NoError(t, err)
	require.Len(t, g.Layers, 1)
	require.Len(t, g.Layers[0].Segments, 1)
	assert.Len(t, g.Layers[0].Segments[0].Roles, 1, "absent role must be skipped, not zeroed")
	assert.Equal(t, "type", g.Layers[0].Segments[0].Roles[0].Name)
}

func TestEncode_RelationshipAndMetadataLookup(t *testing.T) {
	cfg := encoder.SingleSegment(10000, 42,
		encoder.Role{Name: "depends_on"},
		encoder.Role{Name: "source"},
	)
	enc, err := encoder.New(cfg)
	require.NoError(t, err)

	g, err := enc.Encode(encoder.Concept{
		Name:          "service a",
		Relationships: []encoder.Relationship{{Type: "depends_on", Target: "service b"}},
		Metadata:      map[string]string{"source": "runbook v3"},
	})
	require.NoError(t, err)
	seg := g.Layers[0].Segments[0]
	assert.NotNil(t, seg.Role("depends_on"))
	assert.NotNil(t, seg.Role("source"))
}

func TestEncode_CitationCaptured(t *testing.T) {
	enc, err := encoder.New(carConfig())
	require.NoError(t, err)

	g, err := enc.Encode(encoder.Concept{
		Name:       "return policy",
		Attributes: map[string]string{"type": "policy", "color": "n/a"},
		Metadata: map[string]string{
			"source":        "Customer Policy Manual v2.3",
			"approved_by":   "Legal Team",
			"approved_date": "2025-01-15",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, g.Citation)
	assert.Equal(t, "Legal Team", g.Citation.ApprovedBy)
	assert.Equal(t, "Customer Policy Manual v2.3", g.Citation.Source)
}

func TestEncode_RoleValueSymbolsIndependent(t *testing.T) {
	enc, err := encoder.New(carConfig())
	require.NoError(t, err)

	// A value equal to a role name must come from a different symbol stream.
	sim, err := hdv.Similarity(enc.RoleSymbol("color"), enc.ValueSymbol("color"), hdv.Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 0, sim, 0.1)
}

func TestEncode_WeightsDuringEncoding(t *testing.T) {
	cfg := carConfig()
	cfg.ApplyWeightsDuringEncoding = true
	cfg.Layers[0].Segments[0].Roles[0].SimilarityWeight = 1.0
	cfg.Layers[0].Segments[0].Roles[1].SimilarityWeight = 0.1

	enc, err := encoder.New(cfg)
	require.NoError(t, err)
	g, err := enc.Encode(redCar())
	require.NoError(t, err)

	seg := g.Layers[0].Segments[0]
	simType, err := hdv.Similarity(seg.Vector, seg.Role("type").Vector, hdv.Cosine)
	require.NoError(t, err)
	simColor, err := hdv.Similarity(seg.Vector, seg.Role("color").Vector, hdv.Cosine)
	require.NoError(t, err)
	assert.Greater(t, simType, simColor, "heavier role must dominate the baked segment bundle")
}

func TestEncode_CachePopulatedAndClearable(t *testing.T) {
	enc, err := encoder.New(carConfig())
	require.NoError(t, err)

	_, err = enc.Encode(redCar())
	require.NoError(t, err)
	assert.Greater(t, enc.CacheSize(), 0)

	before := enc.CacheSize()
	g1, err := enc.Encode(redCar())
	require.NoError(t, err)
	assert.Equal(t, before, enc.CacheSize(), "re-encoding the same concept must not grow the cache")

	enc.ClearCache()
	assert.Equal(t, 0, enc.CacheSize())
	g2, err := enc.Encode(redCar())
	require.NoError(t, err)
	assert.True(t, hdv.Equal(g1.Cortex, g2.Cortex), "cache must never change results")
}

// ── config validation ─────────────────────────────────────────────────────────

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*encoder.EncoderConfig)
	}{
		{"zero dimension", func(c *encoder.EncoderConfig) { c.Dimension = 0 }},
		{"no layers", func(c *encoder.EncoderConfig) { c.Layers = nil }},
		{"weight above one", func(c *encoder.EncoderConfig) { c.Layers[0].SimilarityWeight = 1.5 }},
		{"negative weight", func(c *encoder.EncoderConfig) { c.Layers[0].Segments[0].Roles[0].SecurityWeight = -0.2 }},
		{"empty segment", func(c *encoder.EncoderConfig) { c.Layers[0].Segments[0].Roles = nil }},
		{"duplicate roles", func(c *encoder.EncoderConfig) {
			c.Layers[0].Segments[0].Roles[1].Name = c.Layers[0].Segments[0].Roles[0].Name
		}},
		{"duplicate layers", func(c *encoder.EncoderConfig) {
			c.Layers = append(c.Layers, c.Layers[0])
		}},
		{"two primary ids", func(c *encoder.EncoderConfig) {
			c.Layers[0].Segments[0].Roles[0].PrimaryID = true
			c.Layers[0].Segments[0].Roles[1].PrimaryID = true
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := carConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, encoder.ErrConfiguration)

			_, err = encoder.New(cfg)
			assert.Error(t, err, "New must reject what Validate rejects")
		})
	}
}

func TestConfig_NormalizedDefaultsWeights(t *testing.T) {
	cfg := carConfig().Normalized()
	assert.Equal(t, 1.0, cfg.SimilarityWeight)
	assert.Equal(t, 1.0, cfg.Layers[0].SecurityWeight)
	assert.Equal(t, 1.0, cfg.Layers[0].Segments[0].Roles[0].SimilarityWeight)

	cfg = carConfig()
	cfg.Layers[0].SimilarityWeight = 0.4
	assert.Equal(t, 0.4, cfg.Normalized().Layers[0].SimilarityWeight, "explicit weights survive normalization")
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	cfg := carConfig()
	cfg.Layers[0].Segments[0].Roles[0].PrimaryID = true
	cfg.Layers[0].SimilarityWeight = 0.8

	require.NoError(t, encoder.SaveConfig(path, cfg))
	loaded, err := encoder.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfig_LoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	cfg := carConfig()
	cfg.Dimension = -5
	require.NoError(t, encoder.SaveConfig(path, cfg))

	_, err := encoder.LoadConfig(path)
	assert.ErrorIs(t, err, encoder.ErrConfiguration)
}

// ── schema helpers ────────────────────────────────────────────────────────────

func TestSameSchema(t *testing.T) {
	enc, err := encoder.New(carConfig())
	require.NoError(t, err)

	a, err := enc.Encode(redCar())
	require.NoError(t, err)
	b, err := enc.Encode(encoder.Concept{
		Name:       "blue truck",
		Attributes: map[string]string{"type": "truck", "color": "blue"},
	})
	require.NoError(t, err)
	assert.True(t, encoder.SameSchema(a, b))

	partial, err := enc.Encode(encoder.Concept{
		Name:       "colorless car",
		Attributes: map[string]string{"type": "car"},
	})
	require.NoError(t, err)
	assert.False(t, encoder.SameSchema(a, partial), "differing role presence is a schema mismatch")
}

func TestNew_RejectsUnknownError(t *testing.T) {
	cfg := carConfig()
	cfg.Layers = nil
	_, err := encoder.New(cfg)
	require.Error(t, err)
	assert.False(t, errors.Is(err, encoder.ErrIncompatibleSpace))
}

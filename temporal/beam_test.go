package temporal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphh/glyphh/encoder"
	"github.com/glyphh/glyphh/hdv"
	"github.com/glyphh/glyphh/temporal"
)

func history(t *testing.T) []*encoder.Glyph {
	t.Helper()
	return encodeAll(t, metricConfig(),
		snapshot("1000", "up"),
		snapshot("1080", "up"),
		snapshot("1150", "up"),
		snapshot("1500", "spike"),
	)
}

func newPredictor() *temporal.Predictor {
	return temporal.NewPredictor(hdv.NewSpace(10000, 42))
}

func TestPredict_Preconditions(t *testing.T) {
	p := newPredictor()
	hist := history(t)

	_, err := p.Predict(context.Background(), hist[:1], temporal.PredictOptions{Steps: 1, BeamWidth: 3})
	assert.ErrorIs(t, err, temporal.ErrInsufficientHistory)

	_, err = p.Predict(context.Background(), hist, temporal.PredictOptions{Steps: 1, BeamWidth: 0})
	assert.ErrorIs(t, err, temporal.ErrInvalidBeamWidth)

	_, err = p.Predict(context.Background(), hist, temporal.PredictOptions{Steps: 0, BeamWidth: 3})
	assert.ErrorIs(t, err, temporal.ErrInvalidSteps)
}

func TestPredict_BeamBoundedAndSorted(t *testing.T) {
	p := newPredictor()
	preds, err := p.Predict(context.Background(), history(t), temporal.PredictOptions{
		Steps:     3,
		BeamWidth: 4,
	})
	require.NoError(t, err)
	require.NotEmpty(t, preds)
	assert.LessOrEqual(t, len(preds), 4)

	for i, pr := range preds {
		assert.GreaterOrEqual(t, pr.Confidence, 0.0)
		assert.LessOrEqual(t, pr.Confidence, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, pr.Confidence, preds[i-1].Confidence, "predictions must be sorted most confident first")
		}
	}
}

func TestPredict_Deterministic(t *testing.T) {
	hist := history(t)
	opts := temporal.PredictOptions{Steps: 2, BeamWidth: 3}

	a, err := newPredictor().Predict(context.Background(), hist, opts)
	require.NoError(t, err)
	b, err := newPredictor().Predict(context.Background(), hist, opts)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Confidence, b[i].Confidence)
		assert.True(t, hdv.Equal(a[i].Glyph.Cortex, b[i].Glyph.Cortex), "beam search must be fully deterministic")
	}
}

func TestPredict_TopCandidateFollowsTrend(t *testing.T) {
	// With a single repeated delta the best one-step prediction is the
	// straight-line extrapolation of the latest glyph.
	gs := encodeAll(t, metricConfig(),
		snapshot("1000", "up"),
		snapshot("1100", "up"),
	)
	p := newPredictor()

	preds, err := p.Predict(context.Background(), gs, temporal.PredictOptions{Steps: 1, BeamWidth: 1})
	require.NoError(t, err)
	require.Len(t, preds, 1)

	enc := temporal.NewEncoder()
	d, err := enc.ComputeDelta(gs[0], gs[1])
	require.NoError(t, err)
	expected, err := enc.ApplyDelta(gs[1], d)
	require.NoError(t, err)

	assert.True(t, hdv.Equal(preds[0].Glyph.Cortex, expected.Cortex))
	assert.Equal(t, 1.0, preds[0].Confidence, "a candidate identical to the trend has full confidence")
}

func TestPredict_DriftReductionStaysAnchored(t *testing.T) {
	hist := history(t)
	p := newPredictor()

	preds, err := p.Predict(context.Background(), hist, temporal.PredictOptions{
		Steps:          4,
		BeamWidth:      3,
		DriftReduction: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, preds)

	// The cleaned top prediction must stay measurably close to the codebook.
	best := preds[0].Glyph
	var maxSim float64
	for _, k := range hist {
		sim, err := hdv.Similarity(best.Cortex, k.Cortex, hdv.Cosine)
		require.NoError(t, err)
		if sim > maxSim {
			maxSim = sim
		}
	}
	assert.Greater(t, maxSim, 0.2, "drift reduction must keep candidates near known glyphs")
}

func TestPredict_LayerlessHistory(t *testing.T) {
	// Concepts with no encodable attributes produce glyphs without layers and
	// a zero cortex; prediction must pass the zero vectors through instead of
	// failing inside the delta blend.
	bare := encoder.Concept{Name: "placeholder"}
	gs := encodeAll(t, metricConfig(), bare, bare, bare)

	preds, err := newPredictor().Predict(context.Background(), gs, temporal.PredictOptions{Steps: 2, BeamWidth: 2})
	require.NoError(t, err)
	require.NotEmpty(t, preds)
	for _, pr := range preds {
		assert.True(t, pr.Glyph.Cortex.IsZero())
		assert.Equal(t, 0.0, pr.Confidence, "no vector evidence means no confidence")
	}
}

func TestPredict_ContextCancelReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	preds, err := newPredictor().Predict(ctx, history(t), temporal.PredictOptions{Steps: 5, BeamWidth: 2})
	require.NoError(t, err, "cancellation truncates steps, it is not an error")
	require.Len(t, preds, 1, "with zero steps run, the beam still holds the seed glyph")
	assert.Equal(t, 1.0, preds[0].Confidence)
}

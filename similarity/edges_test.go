package similarity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphh/glyphh/similarity"
)

func TestSpatialEdges_ThresholdFilters(t *testing.T) {
	gs := encodeAll(t, carConfig(), redCar, blueTruck, unrelated)
	calc := similarity.NewCalculator(carConfig(), similarity.Options{})

	all, err := similarity.NewEdgeGenerator(calc, -1).SpatialEdges(gs)
	require.NoError(t, err)
	assert.Len(t, all, 3, "every pair qualifies with a floor of -1")

	some, err := similarity.NewEdgeGenerator(calc, 0.05).SpatialEdges(gs)
	require.NoError(t, err)
	require.Len(t, some, 1, "only the structurally related pair clears the threshold")
	assert.Equal(t, gs[0].ID, some[0].From)
	assert.Equal(t, gs[1].ID, some[0].To)
	assert.Equal(t, similarity.Spatial, some[0].Kind)
}

func TestTemporalEdges_LinkConsecutive(t *testing.T) {
	gs := encodeAll(t, carConfig(), redCar, blueTruck, redCar)
	calc := similarity.NewCalculator(carConfig(), similarity.Options{})

	edges, err := similarity.NewEdgeGenerator(calc, 0).TemporalEdges(gs)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, gs[0].ID, edges[0].From)
	assert.Equal(t, gs[1].ID, edges[0].To)
	assert.Equal(t, gs[1].ID, edges[1].From)
	assert.Equal(t, gs[2].ID, edges[1].To)
	for _, e := range edges {
		assert.Equal(t, similarity.Temporal, e.Kind)
		assert.GreaterOrEqual(t, e.Interval.Nanoseconds(), int64(0))
	}
}

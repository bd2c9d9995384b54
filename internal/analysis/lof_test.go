package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrecipitationAnomalies(t *testing.T) {
	x := make([]float64, 150)
	for i := range x {
		if i%3 != 0 {
			x[i] = 1 + 0.01*float64(i%10)
		}
	}
	x[37] = 50

	res, err := PrecipitationAnomalies(x, 0.01)
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 100)
	assert.Len(t, res.Scores, 100)
	assert.Equal(t, 20, res.Neighbors)
	assert.Equal(t, []int{37}, res.Anomalies)
	assert.Empty(t, res.Warning)
}

func TestPrecipitationAnomalies_NoPrecipitation(t *testing.T) {
	res, err := PrecipitationAnomalies(make([]float64, 24), 0.01)
	require.NoError(t, err)
	assert.Empty(t, res.Anomalies)
	assert.NotEmpty(t, res.Warning)
}

func TestPrecipitationAnomalies_SingleValue(t *testing.T) {
	res, err := PrecipitationAnomalies([]float64{0, 3, 0}, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Candidates)
	assert.Empty(t, res.Anomalies)
	assert.NotEmpty(t, res.Warning)
}

func TestPrecipitationAnomalies_InvalidProportion(t *testing.T) {
	for _, p := range []float64{0, -0.1, 0.6} {
		_, err := PrecipitationAnomalies([]float64{1, 2}, p)
		require.ErrorIs(t, err, ErrInvalidInput, "proportion %v", p)
	}
}

func TestLocalOutlierFactor_EvenSpacing(t *testing.T) {
	x := make([]float64, 21)
	for i := range x {
		x[i] = float64(i)
	}
	scores := LocalOutlierFactor(x, 2)
	for i := 5; i <= 15; i++ {
		assert.InDelta(t, 1.0, scores[i], 1e-6, "index %d", i)
	}
}

func TestNearestNeighbors(t *testing.T) {
	x := []float64{10, 0, 1, 3}
	nb := nearestNeighbors(x, 2)
	assert.Equal(t, []int{2, 3}, nb[1])
	assert.Equal(t, []int{3, 2}, nb[0])
	assert.ElementsMatch(t, []int{1, 3}, nb[2])
}

package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestComputeSpectrogram_DailyCycle(t *testing.T) {
	x := make([]float64, DefaultSegmentLength*10)
	for i := range x {
		x[i] = 100 + 20*math.Sin(2*math.Pi*float64(i)/24)
	}

	sg, err := ComputeSpectrogram(x, DefaultSegmentLength, -1)
	require.NoError(t, err)

	assert.Equal(t, 84, sg.NOverlap)
	require.Len(t, sg.Frequencies, 85)
	require.Len(t, sg.Times, 19)
	assert.Equal(t, 84.0, sg.Times[0])
	assert.Equal(t, 168.0, sg.Times[1])
	assert.InDelta(t, 1.0/24, sg.Frequencies[7], 1e-12)

	for s := range sg.Times {
		column := make([]float64, len(sg.Frequencies))
		for k := range column {
			column[k] = sg.Power[k][s]
		}
		assert.Equal(t, 7, floats.MaxIdx(column), "segment %d", s)
	}
}

func TestComputeSpectrogram_Constant(t *testing.T) {
	x := make([]float64, 400)
	for i := range x {
		x[i] = 5
	}
	sg, err := ComputeSpectrogram(x, 100, 50)
	require.NoError(t, err)
	for k := range sg.PowerDB {
		for s := range sg.PowerDB[k] {
			assert.InDelta(t, -120.0, sg.PowerDB[k][s], 1e-6)
		}
	}
}

func TestComputeSpectrogram_ClampsSegment(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		x[i] = float64(i % 7)
	}
	sg, err := ComputeSpectrogram(x, DefaultSegmentLength, -1)
	require.NoError(t, err)
	assert.Equal(t, 100, sg.NPerSeg)
	assert.Len(t, sg.Times, 1)
}

func TestComputeSpectrogram_Invalid(t *testing.T) {
	_, err := ComputeSpectrogram([]float64{1}, 168, -1)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = ComputeSpectrogram(make([]float64, 200), 1, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = ComputeSpectrogram(make([]float64, 200), 100, 100)
	require.ErrorIs(t, err, ErrInvalidInput)
}

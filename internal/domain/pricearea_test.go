package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupArea(t *testing.T) {
	a, err := LookupArea("bergen")
	require.NoError(t, err)
	assert.Equal(t, "NO5", a.Code)

	a, err = LookupArea("no 4")
	require.NoError(t, err)
	assert.Equal(t, "Tromsø", a.City)
	assert.InDelta(t, 69.6492, a.Lat, 1e-9)

	_, err = LookupArea("Stavanger")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPoint_Validate(t *testing.T) {
	require.NoError(t, Point{Lat: 60, Lon: 10}.Validate())
	require.ErrorIs(t, Point{Lat: 91, Lon: 0}.Validate(), ErrInvalidParams)
	require.ErrorIs(t, Point{Lat: 0, Lon: -181}.Validate(), ErrInvalidParams)
}

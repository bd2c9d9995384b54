//go:build openmeteo

package openmeteo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/energy-weather-insights/internal/observability"
)

// These tests hit the public Open-Meteo archive.
// Run with: go test -tags=openmeteo ./internal/adapter/openmeteo/ -v -count=1

func TestSmoke_FetchYear(t *testing.T) {
	c := NewClient(Options{Timeout: 60 * time.Second, MaxRetries: 3, RateLimit: 1},
		discardLogger(), observability.NewMetricsForTesting())

	series, err := c.FetchYear(context.Background(), bergen, 2021)
	require.NoError(t, err)

	// 2021 is complete in ERA5 and has 8760 hours.
	assert.Len(t, series, 8760)
	for _, s := range series {
		assert.GreaterOrEqual(t, s.WindSpeed, 0.0)
		assert.GreaterOrEqual(t, s.WindDirection, 0.0)
		assert.LessOrEqual(t, s.WindDirection, 360.0)
	}
}

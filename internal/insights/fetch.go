package insights

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// FetchYears fetches the calendar years from..to at p, running at most limit
// requests at once, and concatenates them in year order. The first failure
// cancels the outstanding fetches.
func FetchYears(ctx context.Context, archive domain.WeatherArchive, p domain.Point, from, to, limit int) (domain.Series, error) {
	if to < from {
		return nil, fmt.Errorf("%w: start year %d is after end year %d", domain.ErrInvalidParams, from, to)
	}

	parts := make([]domain.Series, to-from+1)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i := range parts {
		year := from + i
		g.Go(func() error {
			series, err := archive.FetchYear(gCtx, p, year)
			if err != nil {
				return fmt.Errorf("fetch %d: %w", year, err)
			}
			parts[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, part := range parts {
		total += len(part)
	}
	out := make(domain.Series, 0, total)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}

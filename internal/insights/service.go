// Package insights answers the analytical queries of the API: snow drift for a
// location, weather series and their outliers, and energy production views.
// It coordinates the weather archive, the price-area locator and the record
// store, and leaves the numerics to the domain and analysis packages.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/energy-weather-insights/internal/analysis"
	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// RecordStore reads energy records.
type RecordStore interface {
	Query(ctx context.Context, f domain.RecordFilter) ([]domain.Record, error)
	Ping(ctx context.Context) error
}

// Options wire a Service. Locator, Store and LocalWeather are optional; the
// operations that need a missing one fail with domain.ErrUnavailable.
type Options struct {
	Archive          domain.WeatherArchive
	Locator          domain.AreaLocator
	Store            RecordStore
	LocalWeather     domain.Series
	Drift            domain.DriftParams
	FetchConcurrency int
}

// Service implements the insight queries.
type Service struct {
	archive      domain.WeatherArchive
	locator      domain.AreaLocator
	store        RecordStore
	localWeather domain.Series
	drift        domain.DriftParams
	concurrency  int
	palette      *domain.Palette
	logger       *slog.Logger
}

// New creates a Service.
func New(opts Options, logger *slog.Logger) *Service {
	drift := opts.Drift
	if drift == (domain.DriftParams{}) {
		drift = domain.DefaultDriftParams()
	}
	return &Service{
		archive:      opts.Archive,
		locator:      opts.Locator,
		store:        opts.Store,
		localWeather: opts.LocalWeather,
		drift:        drift,
		concurrency:  max(opts.FetchConcurrency, 1),
		palette:      domain.NewPalette(),
		logger:       logger,
	}
}

// CheckReadiness pings the record store when one is configured.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Ping(ctx)
}

// PriceAreas lists the price areas with their representative cities. Areas
// outlined in the loaded polygons are flagged as mapped.
func (s *Service) PriceAreas() []PriceAreaInfo {
	mapped := make(map[string]bool)
	if s.locator != nil {
		for _, code := range s.locator.Areas() {
			mapped[code] = true
		}
	}
	out := make([]PriceAreaInfo, len(domain.PriceAreas))
	for i, a := range domain.PriceAreas {
		out[i] = PriceAreaInfo{PriceArea: a, Mapped: mapped[a.Code]}
	}
	return out
}

// PriceAreaInfo is a price area as listed by the API.
type PriceAreaInfo struct {
	domain.PriceArea
	Mapped bool `json:"mapped"`
}

// Location is the price area containing a point.
type Location struct {
	Point     domain.Point `json:"point"`
	PriceArea string       `json:"price_area"`
	City      string       `json:"city,omitempty"`
}

// Locate finds the price area polygon containing p.
func (s *Service) Locate(p domain.Point) (Location, error) {
	if s.locator == nil {
		return Location{}, fmt.Errorf("%w: price area polygons", domain.ErrUnavailable)
	}
	code, err := s.locator.Locate(p)
	if err != nil {
		return Location{}, err
	}
	loc := Location{Point: p, PriceArea: code}
	if area, err := domain.LookupArea(code); err == nil {
		loc.City = area.City
	}
	return loc, nil
}

// Place is a location given either by coordinates or by a city/area name.
type Place struct {
	City  string
	Point *domain.Point
}

// resolve turns a Place into coordinates and a display name.
func (p Place) resolve() (domain.Point, string, error) {
	if strings.TrimSpace(p.City) != "" {
		area, err := domain.LookupArea(p.City)
		if err != nil {
			return domain.Point{}, "", err
		}
		return domain.Point{Lat: area.Lat, Lon: area.Lon}, area.City, nil
	}
	if p.Point == nil {
		return domain.Point{}, "", fmt.Errorf("%w: either city or lat/lon is required", domain.ErrInvalidParams)
	}
	if err := p.Point.Validate(); err != nil {
		return domain.Point{}, "", err
	}
	return *p.Point, "", nil
}

// invalid maps analysis input errors onto domain.ErrInvalidParams.
func invalid(err error) error {
	if errors.Is(err, analysis.ErrInvalidInput) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidParams, err)
	}
	return err
}

package insights

import (
	"context"
	"fmt"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

const noDriftWarning = "No snow drift data available for the selected range."

// SnowDriftRequest asks for the seasonal snow transport at a point. Each of T,
// F and Theta replaces the configured model parameter when set; unset ones keep
// the service configuration.
type SnowDriftRequest struct {
	Point     domain.Point
	StartYear int
	EndYear   int
	T         *float64
	F         *float64
	Theta     *float64
}

func (r SnowDriftRequest) params(base domain.DriftParams) domain.DriftParams {
	if r.T != nil {
		base.T = *r.T
	}
	if r.F != nil {
		base.F = *r.F
	}
	if r.Theta != nil {
		base.Theta = *r.Theta
	}
	return base
}

// SeasonRow is one season of the snow drift table.
type SeasonRow struct {
	domain.SnowTransport
	QtTonnes float64 `json:"qt_tonnes_per_m"`
}

// SnowDriftReport holds the seasonal table, its overall mean and the
// directional breakdown for a wind rose.
type SnowDriftReport struct {
	PriceArea          string               `json:"price_area"`
	Point              domain.Point         `json:"point"`
	StartYear          int                  `json:"start_year"`
	EndYear            int                  `json:"end_year"`
	Params             domain.DriftParams   `json:"params"`
	Results            []SeasonRow          `json:"results"`
	OverallAvgQt       float64              `json:"overall_avg_qt"`
	OverallAvgQtTonnes float64              `json:"overall_avg_qt_tonnes_per_m"`
	WindRose           []domain.SectorValue `json:"wind_rose"`
	Samples            int                  `json:"samples"`
	Warning            string               `json:"warning,omitempty"`
}

// SnowDrift fetches the calendar years StartYear..EndYear at the point and runs
// the transport model once per July-June season found in them. The point must
// lie inside a price area.
func (s *Service) SnowDrift(ctx context.Context, req SnowDriftRequest) (*SnowDriftReport, error) {
	if err := req.Point.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateYearRange(req.StartYear, req.EndYear); err != nil {
		return nil, err
	}
	params := req.params(s.drift)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	loc, err := s.Locate(req.Point)
	if err != nil {
		return nil, err
	}

	series, err := FetchYears(ctx, s.archive, req.Point, req.StartYear, req.EndYear, s.concurrency)
	if err != nil {
		return nil, err
	}

	report := &SnowDriftReport{
		PriceArea: loc.PriceArea,
		Point:     req.Point,
		StartYear: req.StartYear,
		EndYear:   req.EndYear,
		Params:    params,
		Results:   []SeasonRow{},
		Samples:   len(series),
	}

	results, err := domain.SeasonalResults(series, params)
	if err != nil {
		return nil, fmt.Errorf("seasonal results: %w", err)
	}
	sectors, err := domain.AverageSectors(series)
	if err != nil {
		return nil, fmt.Errorf("sector transport: %w", err)
	}
	report.WindRose = domain.WindRose(sectors)

	if len(results) == 0 {
		report.Warning = noDriftWarning
		s.logger.Warn("snow drift produced no seasons",
			"area", loc.PriceArea, "start_year", req.StartYear, "end_year", req.EndYear)
		return report, nil
	}
	for _, r := range results {
		report.Results = append(report.Results, SeasonRow{SnowTransport: r, QtTonnes: r.QtTonnes()})
	}
	report.OverallAvgQt = domain.OverallAverageQt(results)
	report.OverallAvgQtTonnes = domain.ToTonnes(report.OverallAvgQt)

	s.logger.Debug("snow drift computed",
		"area", loc.PriceArea, "seasons", len(results), "samples", len(series))
	return report, nil
}

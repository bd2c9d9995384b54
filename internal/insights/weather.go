package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/energy-weather-insights/internal/analysis"
	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// WeatherReport is one calendar year of hourly weather at a place.
type WeatherReport struct {
	City    string        `json:"city,omitempty"`
	Point   domain.Point  `json:"point"`
	Year    int           `json:"year"`
	Samples domain.Series `json:"samples"`
}

// Weather returns the hourly series of one year at a city or coordinate.
func (s *Service) Weather(ctx context.Context, place Place, year int) (*WeatherReport, error) {
	p, city, series, err := s.fetchYear(ctx, place, year)
	if err != nil {
		return nil, err
	}
	return &WeatherReport{City: city, Point: p, Year: year, Samples: series}, nil
}

func (s *Service) fetchYear(ctx context.Context, place Place, year int) (domain.Point, string, domain.Series, error) {
	p, city, err := place.resolve()
	if err != nil {
		return domain.Point{}, "", nil, err
	}
	if err := domain.ValidateYearRange(year, year); err != nil {
		return domain.Point{}, "", nil, err
	}
	series, err := s.archive.FetchYear(ctx, p, year)
	if err != nil {
		return domain.Point{}, "", nil, err
	}
	if len(series) == 0 {
		return domain.Point{}, "", nil, fmt.Errorf("%w: no weather samples for %d", domain.ErrNotFound, year)
	}
	return p, city, series, nil
}

// OutlierRequest configures a temperature SPC check. Zero CutoffHours and NStd
// take the defaults of the method.
type OutlierRequest struct {
	Place       Place
	Year        int
	Method      string
	CutoffHours float64
	NStd        float64
}

// OutlierPoint is one hour of the SPC chart.
type OutlierPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Baseline float64   `json:"baseline"`
	Lower    float64   `json:"lower"`
	Upper    float64   `json:"upper"`
	Outlier  bool      `json:"outlier"`
}

// OutlierReport is the SPC chart of a temperature series.
type OutlierReport struct {
	City        string             `json:"city,omitempty"`
	Point       domain.Point       `json:"point"`
	Year        int                `json:"year"`
	Method      string             `json:"method"`
	CutoffHours float64            `json:"cutoff_hours"`
	NStd        float64            `json:"n_std"`
	Sigma       float64            `json:"sigma"`
	Points      []OutlierPoint     `json:"points"`
	Outliers    []domain.TimeValue `json:"outliers"`
}

// TemperatureOutliers runs a statistical process control check over the hourly
// 2 m temperature of one year.
func (s *Service) TemperatureOutliers(ctx context.Context, req OutlierRequest) (*OutlierReport, error) {
	if req.Method == "" {
		req.Method = analysis.MethodTrend
	}
	var defCutoff, defNStd float64
	switch req.Method {
	case analysis.MethodTrend:
		defCutoff, defNStd = analysis.DefaultTrendCutoffHours, analysis.DefaultTrendNStd
	case analysis.MethodDCT:
		defCutoff, defNStd = analysis.DefaultDCTCutoffHours, analysis.DefaultDCTNStd
	default:
		return nil, fmt.Errorf("%w: method %q must be %s or %s", domain.ErrInvalidParams, req.Method, analysis.MethodTrend, analysis.MethodDCT)
	}
	if req.CutoffHours == 0 {
		req.CutoffHours = defCutoff
	}
	if req.NStd == 0 {
		req.NStd = defNStd
	}

	p, city, series, err := s.fetchYear(ctx, req.Place, req.Year)
	if err != nil {
		return nil, err
	}
	temps, err := series.Column(domain.VarTemperature)
	if err != nil {
		return nil, err
	}

	var res analysis.SPCResult
	if req.Method == analysis.MethodDCT {
		res, err = analysis.DCTOutliers(temps, req.CutoffHours, req.NStd)
	} else {
		res, err = analysis.TrendOutliers(temps, req.CutoffHours, req.NStd)
	}
	if err != nil {
		return nil, invalid(err)
	}

	report := &OutlierReport{
		City:        city,
		Point:       p,
		Year:        req.Year,
		Method:      req.Method,
		CutoffHours: req.CutoffHours,
		NStd:        req.NStd,
		Sigma:       res.Sigma,
		Points:      make([]OutlierPoint, len(series)),
		Outliers:    make([]domain.TimeValue, 0, len(res.Outliers)),
	}
	for i, sample := range series {
		report.Points[i] = OutlierPoint{
			Time:     sample.Time,
			Value:    temps[i],
			Baseline: res.Baseline[i],
			Lower:    res.Lower[i],
			Upper:    res.Upper[i],
		}
	}
	for _, i := range res.Outliers {
		report.Points[i].Outlier = true
		report.Outliers = append(report.Outliers, domain.TimeValue{Time: series[i].Time, Value: temps[i]})
	}
	return report, nil
}

// AnomalyRequest configures the precipitation LOF check. A zero Proportion
// takes analysis.DefaultAnomalyProportion.
type AnomalyRequest struct {
	Place      Place
	Year       int
	Proportion float64
}

// AnomalyReport lists the precipitation hours flagged by the LOF.
type AnomalyReport struct {
	City       string             `json:"city,omitempty"`
	Point      domain.Point       `json:"point"`
	Year       int                `json:"year"`
	Proportion float64            `json:"proportion"`
	Threshold  float64            `json:"threshold"`
	Neighbors  int                `json:"neighbors"`
	Scored     int                `json:"scored"`
	Series     []domain.TimeValue `json:"series"`
	Anomalies  []domain.TimeValue `json:"anomalies"`
	Warning    string             `json:"warning,omitempty"`
}

// PrecipitationAnomalies scores the wet hours of one year with the Local
// Outlier Factor and returns those above the contamination threshold.
func (s *Service) PrecipitationAnomalies(ctx context.Context, req AnomalyRequest) (*AnomalyReport, error) {
	if req.Proportion == 0 {
		req.Proportion = analysis.DefaultAnomalyProportion
	}
	if !(req.Proportion > 0 && req.Proportion <= 0.5) {
		return nil, fmt.Errorf("%w: proportion %g must be within (0, 0.5]", domain.ErrInvalidParams, req.Proportion)
	}

	p, city, series, err := s.fetchYear(ctx, req.Place, req.Year)
	if err != nil {
		return nil, err
	}
	precip, err := series.Column(domain.VarPrecipitation)
	if err != nil {
		return nil, err
	}
	res, err := analysis.PrecipitationAnomalies(precip, req.Proportion)
	if err != nil {
		return nil, invalid(err)
	}

	report := &AnomalyReport{
		City:       city,
		Point:      p,
		Year:       req.Year,
		Proportion: req.Proportion,
		Threshold:  res.Threshold,
		Neighbors:  res.Neighbors,
		Scored:     len(res.Candidates),
		Series:     make([]domain.TimeValue, len(series)),
		Anomalies:  make([]domain.TimeValue, 0, len(res.Anomalies)),
		Warning:    res.Warning,
	}
	for i, sample := range series {
		report.Series[i] = domain.TimeValue{Time: sample.Time, Value: precip[i]}
	}
	for _, i := range res.Anomalies {
		report.Anomalies = append(report.Anomalies, domain.TimeValue{Time: series[i].Time, Value: precip[i]})
	}
	if report.Warning != "" {
		s.logger.Warn("precipitation anomaly check degraded", "city", city, "year", req.Year, "warning", report.Warning)
	}
	return report, nil
}

// LocalWeatherReport is a month-range view over the local weather dataset.
type LocalWeatherReport struct {
	From     string             `json:"from"`
	To       string             `json:"to"`
	Variable string             `json:"variable"`
	Months   []string           `json:"available_months"`
	Points   []domain.LongPoint `json:"points"`
}

// LocalWeather filters the local CSV dataset to the months from..to and melts
// it to long format. An empty variable or "all" selects every variable.
func (s *Service) LocalWeather(from, to domain.YearMonth, variable string) (*LocalWeatherReport, error) {
	if s.localWeather == nil {
		return nil, fmt.Errorf("%w: local weather dataset", domain.ErrUnavailable)
	}
	window, err := s.localWeather.FilterMonths(from, to)
	if err != nil {
		return nil, err
	}
	points, err := window.Long(variable)
	if err != nil {
		return nil, err
	}
	if variable == "" {
		variable = "all"
	}

	months := s.localWeather.Months()
	report := &LocalWeatherReport{
		From:     from.String(),
		To:       to.String(),
		Variable: variable,
		Months:   make([]string, len(months)),
		Points:   points,
	}
	for i, m := range months {
		report.Months[i] = m.String()
	}
	return report, nil
}

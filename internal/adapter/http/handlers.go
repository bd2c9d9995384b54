package http

import (
	"context"
	"net/http"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
	"github.com/couchcryptid/energy-weather-insights/internal/insights"
)

// InsightsService is the query surface the API exposes.
type InsightsService interface {
	PriceAreas() []insights.PriceAreaInfo
	Locate(p domain.Point) (insights.Location, error)
	AreaMeans(ctx context.Context, dataset domain.Dataset, group string, days int) ([]domain.AreaMean, error)
	SnowDrift(ctx context.Context, req insights.SnowDriftRequest) (*insights.SnowDriftReport, error)
	Weather(ctx context.Context, place insights.Place, year int) (*insights.WeatherReport, error)
	TemperatureOutliers(ctx context.Context, req insights.OutlierRequest) (*insights.OutlierReport, error)
	PrecipitationAnomalies(ctx context.Context, req insights.AnomalyRequest) (*insights.AnomalyReport, error)
	LocalWeather(from, to domain.YearMonth, variable string) (*insights.LocalWeatherReport, error)
	EnergyTotals(ctx context.Context, dataset domain.Dataset, areas []string) ([]domain.GroupTotal, error)
	EnergySeries(ctx context.Context, req insights.SeriesRequest) (*insights.SeriesReport, error)
	EnergyYears(ctx context.Context, dataset domain.Dataset, category string) (map[string][]int, error)
	EnergySTL(ctx context.Context, req insights.SignalRequest, period int) (*insights.STLReport, error)
	EnergySpectrogram(ctx context.Context, req insights.SignalRequest, nperseg, noverlap int) (*insights.SpectrogramReport, error)
}

type pointQuery struct {
	Lat *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
}

func (q pointQuery) point() domain.Point {
	return domain.Point{Lat: *q.Lat, Lon: *q.Lon}
}

// placeQuery accepts a city or area name, or a coordinate.
type placeQuery struct {
	City string   `query:"city"`
	Lat  *float64 `query:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon  *float64 `query:"lon" validate:"omitempty,gte=-180,lte=180"`
	Year int      `query:"year" validate:"required"`
}

func (q placeQuery) place() insights.Place {
	p := insights.Place{City: q.City}
	if q.Lat != nil && q.Lon != nil {
		p.Point = &domain.Point{Lat: *q.Lat, Lon: *q.Lon}
	}
	return p
}

func (s *Server) handlePriceAreas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"price_areas": s.api.PriceAreas()})
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var q pointQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	loc, err := s.api.Locate(q.point())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

type areaMeansQuery struct {
	Dataset string `query:"dataset" validate:"omitempty,oneof=production consumption"`
	Group   string `query:"group"`
	Days    int    `query:"days" validate:"omitempty,gte=1,lte=90"`
}

func (s *Server) handleAreaMeans(w http.ResponseWriter, r *http.Request) {
	var q areaMeansQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	means, err := s.api.AreaMeans(r.Context(), domain.Dataset(datasetOrDefault(q.Dataset)), q.Group, q.Days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"means": means})
}

type snowDriftQuery struct {
	pointQuery
	StartYear int      `query:"start_year" validate:"required"`
	EndYear   int      `query:"end_year" validate:"required,gtefield=StartYear"`
	T         *float64 `query:"t" validate:"omitempty,gt=0"`
	F         *float64 `query:"f" validate:"omitempty,gte=0"`
	Theta     *float64 `query:"theta" validate:"omitempty,gte=0,lte=1"`
}

func (s *Server) handleSnowDrift(w http.ResponseWriter, r *http.Request) {
	var q snowDriftQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	req := insights.SnowDriftRequest{
		Point:     q.point(),
		StartYear: q.StartYear,
		EndYear:   q.EndYear,
		T:         q.T,
		F:         q.F,
		Theta:     q.Theta,
	}
	report, err := s.api.SnowDrift(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	var q placeQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.api.Weather(r.Context(), q.place(), q.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type outlierQuery struct {
	placeQuery
	Method      string  `query:"method" validate:"omitempty,oneof=trend dct"`
	NStd        float64 `query:"n_std" validate:"omitempty,gt=0"`
	CutoffHours float64 `query:"cutoff_hours" validate:"omitempty,gt=0"`
}

func (s *Server) handleTemperatureOutliers(w http.ResponseWriter, r *http.Request) {
	var q outlierQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.api.TemperatureOutliers(r.Context(), insights.OutlierRequest{
		Place:       q.place(),
		Year:        q.Year,
		Method:      q.Method,
		CutoffHours: q.CutoffHours,
		NStd:        q.NStd,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type anomalyQuery struct {
	placeQuery
	Proportion float64 `query:"proportion" validate:"omitempty,gt=0,lte=0.5"`
}

func (s *Server) handlePrecipitationAnomalies(w http.ResponseWriter, r *http.Request) {
	var q anomalyQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.api.PrecipitationAnomalies(r.Context(), insights.AnomalyRequest{
		Place:      q.place(),
		Year:       q.Year,
		Proportion: q.Proportion,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type localWeatherQuery struct {
	From     string `query:"from" validate:"required"`
	To       string `query:"to" validate:"required"`
	Variable string `query:"variable"`
}

func (s *Server) handleLocalWeather(w http.ResponseWriter, r *http.Request) {
	var q localWeatherQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	from, err := domain.ParseYearMonth(q.From)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := domain.ParseYearMonth(q.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.api.LocalWeather(from, to, q.Variable)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type datasetQuery struct {
	Dataset string `query:"dataset" validate:"omitempty,oneof=production consumption"`
}

func datasetOrDefault(s string) string {
	if s == "" {
		return string(domain.DatasetProduction)
	}
	return s
}

type totalsQuery struct {
	datasetQuery
	Areas []string `query:"areas" validate:"required,min=1"`
}

func (s *Server) handleEnergyTotals(w http.ResponseWriter, r *http.Request) {
	var q totalsQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := s.api.EnergyTotals(r.Context(), domain.Dataset(datasetOrDefault(q.Dataset)), q.Areas)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
}

type seriesQuery struct {
	datasetQuery
	Areas  []string `query:"areas" validate:"required,min=1"`
	Groups []string `query:"groups"`
	Month  string   `query:"month" validate:"required"`
}

func (s *Server) handleEnergySeries(w http.ResponseWriter, r *http.Request) {
	var q seriesQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	month, err := domain.ParseYearMonth(q.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.api.EnergySeries(r.Context(), insights.SeriesRequest{
		Dataset: domain.Dataset(datasetOrDefault(q.Dataset)),
		Areas:   q.Areas,
		Groups:  q.Groups,
		Month:   month,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type yearsQuery struct {
	datasetQuery
	Category string `query:"category" validate:"required,oneof=price_area group"`
}

func (s *Server) handleEnergyYears(w http.ResponseWriter, r *http.Request) {
	var q yearsQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	years, err := s.api.EnergyYears(r.Context(), domain.Dataset(datasetOrDefault(q.Dataset)), q.Category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": q.Category, "years": years})
}

type signalQuery struct {
	datasetQuery
	Area  string `query:"area"`
	Group string `query:"group"`
	All   bool   `query:"all"`
}

func (q signalQuery) request() insights.SignalRequest {
	return insights.SignalRequest{
		Dataset: domain.Dataset(datasetOrDefault(q.Dataset)),
		Area:    q.Area,
		Group:   q.Group,
		All:     q.All,
	}
}

type stlQuery struct {
	signalQuery
	Period int `query:"period" validate:"omitempty,gte=2"`
}

func (s *Server) handleEnergySTL(w http.ResponseWriter, r *http.Request) {
	var q stlQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.api.EnergySTL(r.Context(), q.request(), q.Period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type spectrogramQuery struct {
	signalQuery
	NPerSeg  int  `query:"nperseg" validate:"omitempty,gte=2"`
	NOverlap *int `query:"noverlap" validate:"omitempty,gte=0"`
}

func (s *Server) handleEnergySpectrogram(w http.ResponseWriter, r *http.Request) {
	var q spectrogramQuery
	if err := s.bind(r.URL.Query(), &q); err != nil {
		writeError(w, r, err)
		return
	}
	noverlap := -1
	if q.NOverlap != nil {
		noverlap = *q.NOverlap
	}
	report, err := s.api.EnergySpectrogram(r.Context(), q.request(), q.NPerSeg, noverlap)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Weather variable names as used by the Open-Meteo API and the local CSV export.
const (
	VarTemperature   = "temperature_2m"
	VarPrecipitation = "precipitation"
	VarWindSpeed     = "wind_speed_10m"
	VarWindGusts     = "wind_gusts_10m"
	VarWindDirection = "wind_direction_10m"
)

// WeatherVariables lists every variable in a HourlySample, in export order.
var WeatherVariables = []string{VarTemperature, VarPrecipitation, VarWindSpeed, VarWindGusts, VarWindDirection}

// HourlySample is one hour of weather at a single location.
type HourlySample struct {
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature_2m"`
	Precipitation float64   `json:"precipitation"`
	WindSpeed     float64   `json:"wind_speed_10m"`
	WindGusts     float64   `json:"wind_gusts_10m"`
	WindDirection float64   `json:"wind_direction_10m"`
}

// Value returns the named variable. ok is false for unknown names.
func (s HourlySample) Value(variable string) (float64, bool) {
	switch variable {
	case VarTemperature:
		return s.Temperature, true
	case VarPrecipitation:
		return s.Precipitation, true
	case VarWindSpeed:
		return s.WindSpeed, true
	case VarWindGusts:
		return s.WindGusts, true
	case VarWindDirection:
		return s.WindDirection, true
	default:
		return 0, false
	}
}

// Series is a time-ordered run of hourly samples.
type Series []HourlySample

// Sorted returns a copy ordered by time.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Between returns the samples with from <= t <= to.
func (s Series) Between(from, to time.Time) Series {
	var out Series
	for _, sample := range s {
		if sample.Time.Before(from) || sample.Time.After(to) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// Seasons returns the sorted, unique snow seasons present in the series.
func (s Series) Seasons() []int {
	seen := make(map[int]struct{})
	for _, sample := range s {
		seen[Season(sample.Time)] = struct{}{}
	}
	seasons := make([]int, 0, len(seen))
	for season := range seen {
		seasons = append(seasons, season)
	}
	sort.Ints(seasons)
	return seasons
}

// Column extracts one variable as a slice.
func (s Series) Column(variable string) ([]float64, error) {
	out := make([]float64, len(s))
	for i, sample := range s {
		v, ok := sample.Value(variable)
		if !ok {
			return nil, fmt.Errorf("%w: unknown weather variable %q", ErrInvalidParams, variable)
		}
		out[i] = v
	}
	return out, nil
}

// Times returns the sample timestamps.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s))
	for i, sample := range s {
		out[i] = sample.Time
	}
	return out
}

// Season returns the July-to-June snow season containing t. The boundary is
// midnight UTC on 1 July whatever the location of t.
func Season(t time.Time) int {
	t = t.UTC()
	if t.Month() >= time.July {
		return t.Year()
	}
	return t.Year() - 1
}

// SeasonBounds returns the inclusive UTC bounds of a snow season.
func SeasonBounds(season int) (time.Time, time.Time) {
	start := time.Date(season, time.July, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(season+1, time.June, 30, 23, 59, 59, 0, time.UTC)
	return start, end
}

// SeasonLabel formats a season as "2020-2021".
func SeasonLabel(season int) string {
	return fmt.Sprintf("%d-%d", season, season+1)
}

// YearMonth identifies a calendar month, e.g. 2021-03.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalidParams, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m YearMonth) index() int {
	return m.Year*12 + int(m.Month) - 1
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// FilterMonths keeps samples whose month lies in [from, to].
func (s Series) FilterMonths(from, to YearMonth) (Series, error) {
	if from.index() > to.index() {
		return nil, fmt.Errorf("%w: month range %s..%s is reversed", ErrInvalidParams, from, to)
	}
	var out Series
	for _, sample := range s {
		idx := MonthOf(sample.Time).index()
		if idx >= from.index() && idx <= to.index() {
			out = append(out, sample)
		}
	}
	return out, nil
}

// Months returns the sorted unique months present in the series.
func (s Series) Months() []YearMonth {
	seen := make(map[int]YearMonth)
	for _, sample := range s {
		m := MonthOf(sample.Time)
		seen[m.index()] = m
	}
	keys := make([]int, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]YearMonth, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}

// LongPoint is one (time, variable, value) triple of a melted series.
type LongPoint struct {
	Time     time.Time `json:"time"`
	Variable string    `json:"variable"`
	Value    float64   `json:"value"`
}

// Long melts the series into long format. A variable of "all" or "" expands to
// every weather variable.
func (s Series) Long(variable string) ([]LongPoint, error) {
	vars := []string{variable}
	if variable == "" || strings.EqualFold(variable, "all") {
		vars = WeatherVariables
	}
	for _, v := range vars {
		if _, ok := (HourlySample{}).Value(v); !ok {
			return nil, fmt.Errorf("%w: unknown weather variable %q", ErrInvalidParams, v)
		}
	}

	out := make([]LongPoint, 0, len(s)*len(vars))
	for _, v := range vars {
		for _, sample := range s {
			val, _ := sample.Value(v)
			out = append(out, LongPoint{Time: sample.Time, Variable: v, Value: val})
		}
	}
	return out, nil
}

// MinArchiveYear is the first year covered by the ERA5 archive.
const MinArchiveYear = 1950

// ValidateYearRange checks MinArchiveYear <= start <= end <= current year.
func ValidateYearRange(start, end int) error {
	current := CurrentYear()
	switch {
	case start < MinArchiveYear || end < MinArchiveYear:
		return fmt.Errorf("%w: years must be %d or later", ErrInvalidParams, MinArchiveYear)
	case start > current || end > current:
		return fmt.Errorf("%w: years must not be after %d", ErrInvalidParams, current)
	case start > end:
		return fmt.Errorf("%w: start year %d is after end year %d", ErrInvalidParams, start, end)
	}
	return nil
}

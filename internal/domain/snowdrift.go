package domain

import (
	"fmt"
	"math"
)

const (
	// transportExponent is the power applied to wind speed in the transport rate.
	transportExponent = 3.8
	// transportDivisor converts Σ u^3.8·dt into kg/m.
	transportDivisor = 233847.0
	// HourSeconds is the sampling interval of the archive series.
	HourSeconds = 3600.0
	// swe is only accumulated below this 2 m temperature (°C).
	snowTemperatureThreshold = 1.0
	// SectorCount is the number of compass sectors in the directional breakdown.
	SectorCount = 16
	// SectorWidth is the angular width of one sector in degrees.
	SectorWidth = 360.0 / SectorCount
)

// Transport regimes.
const (
	ControlSnowfall = "Snowfall controlled"
	ControlWind     = "Wind controlled"
)

// SectorLabels are the compass names of the 16 sectors, clockwise from north.
var SectorLabels = [SectorCount]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// SectorCenters are the sector center angles in degrees, 0 to 337.5.
var SectorCenters = func() [SectorCount]float64 {
	var c [SectorCount]float64
	for i := range c {
		c[i] = float64(i) * SectorWidth
	}
	return c
}()

// DriftParams are the site parameters of the transport model.
type DriftParams struct {
	T     float64 `json:"t"`     // maximum transport distance (m)
	F     float64 `json:"f"`     // fetch distance (m)
	Theta float64 `json:"theta"` // relocation coefficient
}

// DefaultDriftParams returns T=3000 m, F=30000 m, θ=0.5.
func DefaultDriftParams() DriftParams {
	return DriftParams{T: 3000, F: 30000, Theta: 0.5}
}

// Validate rejects parameters the closed-form model cannot evaluate.
func (p DriftParams) Validate() error {
	switch {
	case p.T <= 0 || math.IsNaN(p.T):
		return fmt.Errorf("%w: T must be positive", ErrInvalidParams)
	case p.F < 0 || math.IsNaN(p.F):
		return fmt.Errorf("%w: F must not be negative", ErrInvalidParams)
	case p.Theta < 0 || p.Theta > 1 || math.IsNaN(p.Theta):
		return fmt.Errorf("%w: theta must be within [0, 1]", ErrInvalidParams)
	}
	return nil
}

// SnowTransport is the outcome of the model for one season.
type SnowTransport struct {
	Season  string  `json:"season,omitempty"`
	Qupot   float64 `json:"qupot"` // potential wind-driven transport (kg/m)
	Qspot   float64 `json:"qspot"` // snowfall-limited transport (kg/m)
	Srwe    float64 `json:"srwe"`  // relocated water equivalent (mm)
	Qinf    float64 `json:"qinf"`  // controlling transport (kg/m)
	Qt      float64 `json:"qt"`    // mean seasonal transport (kg/m)
	Control string  `json:"control"`
	SWE     float64 `json:"swe"` // total snow water equivalent (mm)
}

// QtTonnes reports Qt in tonnes per metre.
func (s SnowTransport) QtTonnes() float64 {
	return ToTonnes(s.Qt)
}

// ToTonnes converts kg/m to tonnes/m.
func ToTonnes(kg float64) float64 {
	return kg / 1000.0
}

func transportRate(u float64) float64 {
	return math.Pow(u, transportExponent) * HourSeconds / transportDivisor
}

// Qupot sums the potential transport of hourly wind speeds (m/s) in kg/m.
func Qupot(speeds []float64) float64 {
	var total float64
	for _, u := range speeds {
		total += transportRate(u)
	}
	return total
}

// SectorIndex maps a wind direction in degrees to its 16-point compass sector.
// It returns -1 for NaN or infinite directions.
func SectorIndex(direction float64) int {
	if math.IsNaN(direction) || math.IsInf(direction, 0) {
		return -1
	}
	d := math.Mod(direction+SectorWidth/2, 360)
	if d < 0 {
		d += 360
	}
	idx := int(d / SectorWidth)
	if idx >= SectorCount {
		idx = SectorCount - 1
	}
	return idx
}

// SectorTransport decomposes the potential transport by wind direction.
func SectorTransport(speeds, directions []float64) ([SectorCount]float64, error) {
	var sectors [SectorCount]float64
	if len(speeds) != len(directions) {
		return sectors, fmt.Errorf("%w: %d wind speeds but %d directions", ErrInvalidParams, len(speeds), len(directions))
	}
	for i, u := range speeds {
		idx := SectorIndex(directions[i])
		if idx < 0 {
			return sectors, fmt.Errorf("%w: wind direction %v at sample %d", ErrInvalidParams, directions[i], i)
		}
		sectors[idx] += transportRate(u)
	}
	return sectors, nil
}

// HourlySWE is the snow water equivalent contributed by one sample.
func HourlySWE(s HourlySample) float64 {
	if s.Temperature < snowTemperatureThreshold {
		return s.Precipitation
	}
	return 0
}

// TotalSWE sums HourlySWE over a series.
func TotalSWE(series Series) float64 {
	var total float64
	for _, s := range series {
		total += HourlySWE(s)
	}
	return total
}

// ComputeSnowTransport evaluates the model for a total SWE and the hourly wind speeds.
func ComputeSnowTransport(p DriftParams, swe float64, speeds []float64) (SnowTransport, error) {
	if err := p.Validate(); err != nil {
		return SnowTransport{}, err
	}

	qupot := Qupot(speeds)
	qspot := 0.5 * p.T * swe
	srwe := p.Theta * swe

	res := SnowTransport{Qupot: qupot, Qspot: qspot, Srwe: srwe, SWE: swe}
	if qupot > qspot {
		res.Qinf = 0.5 * p.T * srwe
		res.Control = ControlSnowfall
	} else {
		res.Qinf = qupot
		res.Control = ControlWind
	}
	res.Qt = res.Qinf * (1 - math.Pow(0.14, p.F/p.T))
	return res, nil
}

// SeasonalResults runs the model once per snow season present in the series.
// Seasons with no samples inside their bounds are skipped.
func SeasonalResults(series Series, p DriftParams) ([]SnowTransport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var results []SnowTransport
	for _, season := range series.Seasons() {
		start, end := SeasonBounds(season)
		window := series.Between(start, end)
		if len(window) == 0 {
			continue
		}
		speeds, _ := window.Column(VarWindSpeed)
		res, err := ComputeSnowTransport(p, TotalSWE(window), speeds)
		if err != nil {
			return nil, err
		}
		res.Season = SeasonLabel(season)
		results = append(results, res)
	}
	return results, nil
}

// AverageSectors averages the per-season directional transport over all seasons.
// Seasons are summed in chronological order.
func AverageSectors(series Series) ([SectorCount]float64, error) {
	var avg [SectorCount]float64

	groups := make(map[int]Series)
	for _, s := range series {
		season := Season(s.Time)
		groups[season] = append(groups[season], s)
	}
	if len(groups) == 0 {
		return avg, nil
	}

	for _, season := range series.Seasons() {
		group := groups[season]
		speeds, _ := group.Column(VarWindSpeed)
		dirs, _ := group.Column(VarWindDirection)
		sectors, err := SectorTransport(speeds, dirs)
		if err != nil {
			return avg, err
		}
		for i, v := range sectors {
			avg[i] += v
		}
	}
	n := float64(len(groups))
	for i := range avg {
		avg[i] /= n
	}
	return avg, nil
}

// OverallAverageQt is the mean Qt across seasons, or 0 when there are none.
func OverallAverageQt(results []SnowTransport) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Qt
	}
	return sum / float64(len(results))
}

// SectorValue is one bar of the wind rose.
type SectorValue struct {
	Direction string  `json:"direction"`
	Angle     float64 `json:"angle"`
	QtTonnes  float64 `json:"qt_tonnes_per_m"`
}

// WindRose labels averaged sector transport for presentation in tonnes/m.
func WindRose(sectors [SectorCount]float64) []SectorValue {
	out := make([]SectorValue, SectorCount)
	for i, v := range sectors {
		out[i] = SectorValue{
			Direction: SectorLabels[i],
			Angle:     SectorCenters[i],
			QtTonnes:  ToTonnes(v),
		}
	}
	return out
}

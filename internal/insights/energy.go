package insights

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/energy-weather-insights/internal/analysis"
	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// Bounds of the trailing window of AreaMeans.
const (
	DefaultMeanDays = 7
	MaxMeanDays     = 90
)

func (s *Service) query(ctx context.Context, f domain.RecordFilter) ([]domain.Record, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: energy record store", domain.ErrUnavailable)
	}
	records, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no %s records match", domain.ErrNotFound, f.Dataset)
	}
	return records, nil
}

// EnergyTotals returns pie data: the total quantity per group over the selected
// areas, with the group colors.
func (s *Service) EnergyTotals(ctx context.Context, dataset domain.Dataset, areas []string) ([]domain.GroupTotal, error) {
	if len(areas) == 0 {
		return nil, fmt.Errorf("%w: select at least one price area", domain.ErrInvalidParams)
	}
	records, err := s.query(ctx, domain.RecordFilter{Dataset: dataset, Areas: areas})
	if err != nil {
		return nil, err
	}
	return domain.TotalsByGroup(records, areas, s.palette)
}

// SeriesRequest selects the line chart of one month.
type SeriesRequest struct {
	Dataset domain.Dataset
	Areas   []string
	Groups  []string
	Month   domain.YearMonth
}

// GroupLine is the hourly series of one group summed over the selected areas.
type GroupLine struct {
	Group  string             `json:"group"`
	Color  string             `json:"color"`
	Points []domain.TimeValue `json:"points"`
}

// SeriesReport holds one line per group.
type SeriesReport struct {
	Dataset domain.Dataset `json:"dataset"`
	Month   string         `json:"month"`
	Areas   []string       `json:"areas"`
	Lines   []GroupLine    `json:"lines"`
}

// EnergySeries returns the hourly quantities of the selected groups for one
// month, one line per group.
func (s *Service) EnergySeries(ctx context.Context, req SeriesRequest) (*SeriesReport, error) {
	if len(req.Areas) == 0 {
		return nil, fmt.Errorf("%w: select at least one price area", domain.ErrInvalidParams)
	}
	from := time.Date(req.Month.Year, req.Month.Month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Second)

	records, err := s.query(ctx, domain.RecordFilter{
		Dataset: req.Dataset,
		Areas:   req.Areas,
		Groups:  req.Groups,
		From:    from,
		To:      to,
	})
	if err != nil {
		return nil, err
	}
	month := domain.FilterMonth(domain.FilterAreas(records, req.Areas), req.Groups, req.Month)

	byGroup := make(map[string][]domain.Record)
	var order []string
	for _, rec := range month {
		if _, ok := byGroup[rec.Group]; !ok {
			order = append(order, rec.Group)
		}
		byGroup[rec.Group] = append(byGroup[rec.Group], rec)
	}

	report := &SeriesReport{
		Dataset: req.Dataset,
		Month:   req.Month.String(),
		Areas:   normalizedAreas(req.Areas),
		Lines:   make([]GroupLine, 0, len(order)),
	}
	slices.Sort(order)
	for _, g := range order {
		report.Lines = append(report.Lines, GroupLine{
			Group:  g,
			Color:  s.palette.Color(g),
			Points: domain.HourlyTotals(byGroup[g]),
		})
	}
	return report, nil
}

// EnergyYears lists the distinct years per price area or per group.
func (s *Service) EnergyYears(ctx context.Context, dataset domain.Dataset, category string) (map[string][]int, error) {
	if category != domain.CategoryPriceArea && category != domain.CategoryGroup {
		return nil, fmt.Errorf("%w: category %q must be %s or %s", domain.ErrInvalidParams, category, domain.CategoryPriceArea, domain.CategoryGroup)
	}
	records, err := s.query(ctx, domain.RecordFilter{Dataset: dataset})
	if err != nil {
		return nil, err
	}
	return domain.UniqueYears(records, category)
}

// AreaMeans returns the mean quantity of group per price area over the
// trailing days, colored for a choropleth.
func (s *Service) AreaMeans(ctx context.Context, dataset domain.Dataset, group string, days int) ([]domain.AreaMean, error) {
	if days == 0 {
		days = DefaultMeanDays
	}
	if days < 1 || days > MaxMeanDays {
		return nil, fmt.Errorf("%w: days must be within [1, %d]", domain.ErrInvalidParams, MaxMeanDays)
	}
	f := domain.RecordFilter{Dataset: dataset}
	if group != "" {
		f.Groups = []string{group}
	}
	records, err := s.query(ctx, f)
	if err != nil {
		return nil, err
	}
	return domain.AreaMeans(records, group, days)
}

// SignalRequest selects the hourly series fed to STL or the spectrogram. All
// sums every area and group; otherwise Area and Group are required.
type SignalRequest struct {
	Dataset domain.Dataset
	Area    string
	Group   string
	All     bool
}

// signal loads and regularizes the selected hourly series.
func (s *Service) signal(ctx context.Context, req SignalRequest) ([]time.Time, []float64, error) {
	f := domain.RecordFilter{Dataset: req.Dataset}
	if !req.All {
		if strings.TrimSpace(req.Area) == "" || strings.TrimSpace(req.Group) == "" {
			return nil, nil, fmt.Errorf("%w: area and group are required unless all is set", domain.ErrInvalidParams)
		}
		f.Areas = []string{req.Area}
		f.Groups = []string{req.Group}
	}
	records, err := s.query(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	totals := domain.HourlyTotals(records)
	times := make([]time.Time, len(totals))
	values := make([]float64, len(totals))
	for i, tv := range totals {
		times[i] = tv.Time
		values[i] = tv.Value
	}
	times, values, err = analysis.Regularize(times, values, time.Hour)
	if err != nil {
		return nil, nil, invalid(err)
	}
	return times, values, nil
}

// STLReport holds the decomposition of an hourly energy series.
type STLReport struct {
	Dataset   domain.Dataset `json:"dataset"`
	Area      string         `json:"area,omitempty"`
	Group     string         `json:"group,omitempty"`
	Period    int            `json:"period"`
	Times     []time.Time    `json:"times"`
	Observed  []float64      `json:"observed"`
	Trend     []float64      `json:"trend"`
	Seasonal  []float64      `json:"seasonal"`
	Remainder []float64      `json:"remainder"`
}

// EnergySTL decomposes the selected series with robust STL. A zero period
// selects one week.
func (s *Service) EnergySTL(ctx context.Context, req SignalRequest, period int) (*STLReport, error) {
	times, values, err := s.signal(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := analysis.STL(values, analysis.STLParams{Period: period})
	if err != nil {
		return nil, invalid(err)
	}
	return &STLReport{
		Dataset:   req.Dataset,
		Area:      signalArea(req),
		Group:     signalGroup(req),
		Period:    res.Period,
		Times:     times,
		Observed:  values,
		Trend:     res.Trend,
		Seasonal:  res.Seasonal,
		Remainder: res.Remainder,
	}, nil
}

// SpectrogramReport is a spectrogram with segment centers as timestamps.
type SpectrogramReport struct {
	analysis.Spectrogram
	Dataset      domain.Dataset `json:"dataset"`
	Area         string         `json:"area,omitempty"`
	Group        string         `json:"group,omitempty"`
	Start        time.Time      `json:"start"`
	SegmentTimes []time.Time    `json:"segment_times"`
}

// EnergySpectrogram computes the spectrogram of the selected series. A zero
// nperseg selects one week; a negative noverlap selects half a segment.
func (s *Service) EnergySpectrogram(ctx context.Context, req SignalRequest, nperseg, noverlap int) (*SpectrogramReport, error) {
	if nperseg == 0 {
		nperseg = analysis.DefaultSegmentLength
	}
	times, values, err := s.signal(ctx, req)
	if err != nil {
		return nil, err
	}
	sg, err := analysis.ComputeSpectrogram(values, nperseg, noverlap)
	if err != nil {
		return nil, invalid(err)
	}

	report := &SpectrogramReport{
		Spectrogram:  sg,
		Dataset:      req.Dataset,
		Area:         signalArea(req),
		Group:        signalGroup(req),
		Start:        times[0],
		SegmentTimes: make([]time.Time, len(sg.Times)),
	}
	for i, h := range sg.Times {
		report.SegmentTimes[i] = times[0].Add(time.Duration(h * float64(time.Hour)))
	}
	return report, nil
}

func signalArea(req SignalRequest) string {
	if req.All {
		return ""
	}
	return domain.NormalizeAreaName(req.Area)
}

func signalGroup(req SignalRequest) string {
	if req.All {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(req.Group))
}

func normalizedAreas(areas []string) []string {
	out := make([]string, len(areas))
	for i, a := range areas {
		out[i] = domain.NormalizeAreaName(a)
	}
	return out
}

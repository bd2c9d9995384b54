package insights

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

var jan2021 = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(area, group string, start time.Time, kwh float64) domain.Record {
	return domain.Record{Dataset: domain.DatasetProduction, PriceArea: area, Group: group, StartTime: start, QuantityKWh: kwh}
}

func energyFixture() []domain.Record {
	return []domain.Record{
		rec("NO1", "hydro", jan2021, 100),
		rec("NO1", "wind", jan2021, 10),
		rec("NO2", "hydro", jan2021, 300),
		rec("NO1", "hydro", jan2021.Add(time.Hour), 120),
		rec("NO2", "hydro", jan2021.Add(time.Hour), 280),
		rec("NO1", "hydro", jan2021.AddDate(0, 1, 0), 90),
		rec("NO5", "solar", jan2021.AddDate(1, 0, 0), 5),
		{Dataset: domain.DatasetConsumption, PriceArea: "NO1", Group: "household", StartTime: jan2021, QuantityKWh: 999},
	}
}

func TestEnergyTotals(t *testing.T) {
	store := &fakeStore{records: energyFixture()}
	svc := newTestService(&fakeArchive{}, nil, store)

	totals, err := svc.EnergyTotals(context.Background(), domain.DatasetProduction, []string{"no 1", "NO2"})
	require.NoError(t, err)
	assert.Equal(t, []domain.GroupTotal{
		{Group: "hydro", QuantityKWh: 890, Color: "blue"},
		{Group: "wind", QuantityKWh: 10, Color: "orange"},
	}, totals)

	_, err = svc.EnergyTotals(context.Background(), domain.DatasetProduction, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestEnergySeries(t *testing.T) {
	store := &fakeStore{records: energyFixture()}
	svc := newTestService(&fakeArchive{}, nil, store)

	report, err := svc.EnergySeries(context.Background(), SeriesRequest{
		Dataset: domain.DatasetProduction,
		Areas:   []string{"NO1", "NO2"},
		Month:   domain.YearMonth{Year: 2021, Month: time.January},
	})
	require.NoError(t, err)
	assert.Equal(t, "2021-01", report.Month)
	require.Len(t, report.Lines, 2)

	hydro := report.Lines[0]
	assert.Equal(t, "hydro", hydro.Group)
	assert.Equal(t, "blue", hydro.Color)
	assert.Equal(t, []domain.TimeValue{
		{Time: jan2021, Value: 400},
		{Time: jan2021.Add(time.Hour), Value: 400},
	}, hydro.Points)
	assert.Equal(t, "wind", report.Lines[1].Group)

	last := store.filters[len(store.filters)-1]
	assert.Equal(t, jan2021, last.From)
	assert.Equal(t, time.Date(2021, 1, 31, 23, 59, 59, 0, time.UTC), last.To)
}

func TestEnergySeries_NoRecords(t *testing.T) {
	svc := newTestService(&fakeArchive{}, nil, &fakeStore{records: energyFixture()})
	_, err := svc.EnergySeries(context.Background(), SeriesRequest{
		Dataset: domain.DatasetProduction,
		Areas:   []string{"NO3"},
		Month:   domain.YearMonth{Year: 2021, Month: time.January},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnergyYears(t *testing.T) {
	svc := newTestService(&fakeArchive{}, nil, &fakeStore{records: energyFixture()})

	years, err := svc.EnergyYears(context.Background(), domain.DatasetProduction, domain.CategoryPriceArea)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"NO1": {2021}, "NO2": {2021}, "NO5": {2022}}, years)

	_, err = svc.EnergyYears(context.Background(), domain.DatasetProduction, "county")
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestAreaMeans(t *testing.T) {
	svc := newTestService(&fakeArchive{}, nil, &fakeStore{records: energyFixture()})

	means, err := svc.AreaMeans(context.Background(), domain.DatasetProduction, "hydro", 0)
	require.NoError(t, err)
	require.Len(t, means, 2)

	// NO1's window ends at its February record and reaches back 7 days.
	assert.Equal(t, "NO1", means[0].PriceArea)
	assert.InDelta(t, 90, means[0].MeanKWh, 1e-9)
	assert.Equal(t, "NO2", means[1].PriceArea)
	assert.InDelta(t, 290, means[1].MeanKWh, 1e-9)
	assert.NotEqual(t, means[0].Color, means[1].Color)

	_, err = svc.AreaMeans(context.Background(), domain.DatasetProduction, "hydro", 91)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

// weeklySignal is three weeks of hourly hydro production with a daily cycle
// and one missing hour.
func weeklySignal() []domain.Record {
	var out []domain.Record
	for i := range 21 * 24 {
		if i == 50 {
			continue
		}
		v := 1000 + 200*math.Sin(2*math.Pi*float64(i)/24) + float64(i)
		out = append(out, rec("NO1", "hydro", jan2021.Add(time.Duration(i)*time.Hour), v))
	}
	return out
}

func TestEnergySTL(t *testing.T) {
	store := &fakeStore{records: weeklySignal()}
	svc := newTestService(&fakeArchive{}, nil, store)

	report, err := svc.EnergySTL(context.Background(), SignalRequest{Dataset: domain.DatasetProduction, Area: "no1", Group: "Hydro"}, 24)
	require.NoError(t, err)

	assert.Equal(t, "NO1", report.Area)
	assert.Equal(t, "hydro", report.Group)
	assert.Equal(t, 24, report.Period)
	require.Len(t, report.Times, 21*24)
	assert.Equal(t, jan2021.Add(50*time.Hour), report.Times[50])
	for i := range report.Observed {
		sum := report.Trend[i] + report.Seasonal[i] + report.Remainder[i]
		assert.InDelta(t, report.Observed[i], sum, 1e-6)
	}

	_, err = svc.EnergySTL(context.Background(), SignalRequest{Dataset: domain.DatasetProduction, Area: "NO1", Group: "hydro"}, 24*30)
	assert.ErrorIs(t, err, domain.ErrInvalidParams, "fewer than two periods")

	_, err = svc.EnergySTL(context.Background(), SignalRequest{Dataset: domain.DatasetProduction, Area: "NO1"}, 24)
	assert.ErrorIs(t, err, domain.ErrInvalidParams, "group required")
}

func TestEnergySpectrogram(t *testing.T) {
	svc := newTestService(&fakeArchive{}, nil, &fakeStore{records: weeklySignal()})

	report, err := svc.EnergySpectrogram(context.Background(), SignalRequest{Dataset: domain.DatasetProduction, All: true}, 48, -1)
	require.NoError(t, err)

	assert.Empty(t, report.Area)
	assert.Equal(t, jan2021, report.Start)
	assert.Equal(t, 48, report.NPerSeg)
	assert.Equal(t, 24, report.NOverlap)
	require.Len(t, report.SegmentTimes, len(report.Times))
	assert.Equal(t, jan2021.Add(24*time.Hour), report.SegmentTimes[0])

	// The daily cycle dominates: frequency 2/48 = 1/24 cycles per hour.
	peak := 1
	for k := 1; k < len(report.Frequencies); k++ {
		if report.Power[k][0] > report.Power[peak][0] {
			peak = k
		}
	}
	assert.InDelta(t, 1.0/24, report.Frequencies[peak], 1e-12)

	_, err = svc.EnergySpectrogram(context.Background(), SignalRequest{Dataset: domain.DatasetProduction, All: true}, 48, 48)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestEnergy_StoreErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestService(&fakeArchive{}, nil, nil).EnergyYears(ctx, domain.DatasetProduction, domain.CategoryGroup)
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	down := errors.New("db down")
	_, err = newTestService(&fakeArchive{}, nil, &fakeStore{err: down}).EnergyTotals(ctx, domain.DatasetProduction, []string{"NO1"})
	assert.ErrorIs(t, err, down)

	_, err = newTestService(&fakeArchive{}, nil, &fakeStore{}).EnergyYears(ctx, domain.DatasetConsumption, domain.CategoryGroup)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

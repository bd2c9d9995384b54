package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeason(t *testing.T) {
	assert.Equal(t, 2020, Season(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2020, Season(time.Date(2021, 6, 30, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2021, Season(time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2021, Season(time.Date(2021, 12, 31, 23, 0, 0, 0, time.UTC)))
}

func TestSeason_BoundaryIsUTC(t *testing.T) {
	oslo := time.FixedZone("CEST", 2*3600)

	// 01:00 local on 1 July is still 30 June in UTC.
	assert.Equal(t, 2020, Season(time.Date(2021, 7, 1, 1, 0, 0, 0, oslo)))
	assert.Equal(t, 2021, Season(time.Date(2021, 7, 1, 2, 0, 0, 0, oslo)))

	start, _ := SeasonBounds(2021)
	assert.Equal(t, time.UTC, start.Location())
	assert.Equal(t, 2021, Season(start))
	assert.Equal(t, 2020, Season(start.Add(-time.Second)))
}

func TestSeasonBounds(t *testing.T) {
	start, end := SeasonBounds(2020)
	assert.Equal(t, time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2021, 6, 30, 23, 59, 59, 0, time.UTC), end)
	assert.Equal(t, "2020-2021", SeasonLabel(2020))
}

func TestSeries_SeasonsAndBetween(t *testing.T) {
	series := Series{
		{Time: time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC)},
		{Time: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Time: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	assert.Equal(t, []int{2019, 2021}, series.Seasons())

	start, end := SeasonBounds(2019)
	assert.Len(t, series.Between(start, end), 2)

	sorted := series.Sorted()
	assert.True(t, sorted[0].Time.Before(sorted[1].Time))
	assert.Equal(t, time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC), series[0].Time, "Sorted must not reorder the receiver")
}

func TestSeries_FilterMonths(t *testing.T) {
	series := hourly(time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), 24*60, func(int) HourlySample { return HourlySample{} })

	from, err := ParseYearMonth("2021-02")
	require.NoError(t, err)
	to, err := ParseYearMonth(" 2021-03 ")
	require.NoError(t, err)

	got, err := series.FilterMonths(from, to)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), got[0].Time)
	assert.Equal(t, []YearMonth{{Year: 2021, Month: time.February}, {Year: 2021, Month: time.March}}, got.Months())

	_, err = series.FilterMonths(to, from)
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = ParseYearMonth("2021/02")
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestSeries_Long(t *testing.T) {
	ts := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	series := Series{{Time: ts, Temperature: -2, Precipitation: 1, WindSpeed: 3, WindGusts: 6, WindDirection: 200}}

	all, err := series.Long("all")
	require.NoError(t, err)
	require.Len(t, all, len(WeatherVariables))
	assert.Equal(t, LongPoint{Time: ts, Variable: VarTemperature, Value: -2}, all[0])
	assert.Equal(t, LongPoint{Time: ts, Variable: VarWindDirection, Value: 200}, all[4])

	one, err := series.Long(VarWindGusts)
	require.NoError(t, err)
	assert.Equal(t, []LongPoint{{Time: ts, Variable: VarWindGusts, Value: 6}}, one)

	_, err = series.Long("humidity")
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestValidateYearRange(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	require.NoError(t, ValidateYearRange(1950, 2024))
	require.NoError(t, ValidateYearRange(2020, 2020))
	require.ErrorIs(t, ValidateYearRange(1949, 2000), ErrInvalidParams)
	require.ErrorIs(t, ValidateYearRange(2020, 2025), ErrInvalidParams)
	require.ErrorIs(t, ValidateYearRange(2021, 2020), ErrInvalidParams)
}

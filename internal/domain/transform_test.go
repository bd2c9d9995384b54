package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawRecord(t *testing.T) {
	t.Run("elhub production export", func(t *testing.T) {
		data := []byte(`{"priceArea":"NO 2","productionGroup":"Hydro","quantityKwh":"1250.5","startTime":"2021-01-01T00:00:00+01:00"}`)
		rec, err := ParseRawRecord(RawMessage{Value: data})

		require.NoError(t, err)
		assert.Equal(t, DatasetProduction, rec.Dataset)
		assert.Equal(t, "NO2", rec.PriceArea)
		assert.Equal(t, "hydro", rec.Group)
		assert.Equal(t, 1250.5, rec.QuantityKWh)
		assert.Equal(t, time.Date(2020, 12, 31, 23, 0, 0, 0, time.UTC), rec.StartTime)
		assert.Equal(t, RecordKey(rec), rec.ID)
	})

	t.Run("aliased columns and numeric quantity", func(t *testing.T) {
		data := []byte(`{"ElSpotOmr":"no1","consumptionGroup":"household","quantity":42,"timestamp":"2021-03-01 05:00:00"}`)
		rec, err := ParseRawRecord(RawMessage{Value: data, Headers: map[string]string{HeaderDataset: "consumption"}})

		require.NoError(t, err)
		assert.Equal(t, DatasetConsumption, rec.Dataset)
		assert.Equal(t, "NO1", rec.PriceArea)
		assert.Equal(t, "household", rec.Group)
		assert.Equal(t, 42.0, rec.QuantityKWh)
		assert.Equal(t, time.Date(2021, 3, 1, 5, 0, 0, 0, time.UTC), rec.StartTime)
	})

	t.Run("payload dataset wins over header", func(t *testing.T) {
		data := []byte(`{"dataset":"production","pricearea":"NO3","group":"wind","quantitykwh":1,"starttime":"2021-03-01T05:00:00Z"}`)
		rec, err := ParseRawRecord(RawMessage{Value: data, Headers: map[string]string{HeaderDataset: "consumption"}})
		require.NoError(t, err)
		assert.Equal(t, DatasetProduction, rec.Dataset)
	})

	t.Run("non-numeric quantity is zero", func(t *testing.T) {
		data := []byte(`{"pricearea":"NO3","group":"wind","quantitykwh":"n/a","starttime":"2021-03-01T05:00:00Z"}`)
		rec, err := ParseRawRecord(RawMessage{Value: data})
		require.NoError(t, err)
		assert.Zero(t, rec.QuantityKWh)
	})

	t.Run("missing group", func(t *testing.T) {
		data := []byte(`{"pricearea":"NO3","quantitykwh":1,"starttime":"2021-03-01T05:00:00Z"}`)
		_, err := ParseRawRecord(RawMessage{Value: data})
		require.ErrorContains(t, err, "missing group")
	})

	t.Run("missing price area", func(t *testing.T) {
		data := []byte(`{"pricearea":"  ","group":"wind","starttime":"2021-03-01T05:00:00Z"}`)
		_, err := ParseRawRecord(RawMessage{Value: data})
		require.ErrorContains(t, err, "missing price area")
	})

	t.Run("unparseable time", func(t *testing.T) {
		data := []byte(`{"pricearea":"NO3","group":"wind","starttime":"yesterday"}`)
		_, err := ParseRawRecord(RawMessage{Value: data})
		require.ErrorContains(t, err, "unparseable timestamp")
	})

	t.Run("unknown dataset", func(t *testing.T) {
		data := []byte(`{"dataset":"exchange","pricearea":"NO3","group":"wind","starttime":"2021-03-01T05:00:00Z"}`)
		_, err := ParseRawRecord(RawMessage{Value: data})
		require.ErrorIs(t, err, ErrInvalidParams)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawRecord(RawMessage{Value: []byte("{invalid json")})
		require.Error(t, err)
	})
}

func TestNormalizeAreaName(t *testing.T) {
	assert.Equal(t, "NO2", NormalizeAreaName("NO 2"))
	assert.Equal(t, "NO2", NormalizeAreaName(" no\t2 "))
	assert.Equal(t, "NO5", NormalizeAreaName("NO5"))
	assert.Empty(t, NormalizeAreaName("   "))
}

func TestRecordKey_Deterministic(t *testing.T) {
	a := Record{Dataset: DatasetProduction, PriceArea: "NO1", Group: "hydro", StartTime: time.Date(2021, 1, 1, 1, 0, 0, 0, time.UTC), QuantityKWh: 1}
	b := a
	b.QuantityKWh = 99
	b.StartTime = a.StartTime.In(time.FixedZone("CET", 3600))
	assert.Equal(t, RecordKey(a), RecordKey(b))

	b.Group = "wind"
	assert.NotEqual(t, RecordKey(a), RecordKey(b))
	assert.Len(t, RecordKey(a), 16)
}

func TestNormalizeRecord_StampsIngestTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	rec := NormalizeRecord(Record{PriceArea: "NO1"})
	assert.Equal(t, now, rec.IngestedAt)
}

func TestSerializeRecord_RoundTrip(t *testing.T) {
	rec := Record{
		Dataset:     DatasetConsumption,
		PriceArea:   "NO4",
		Group:       "cabin",
		StartTime:   time.Date(2022, 2, 3, 4, 0, 0, 0, time.UTC),
		QuantityKWh: 17.25,
	}
	msg, err := SerializeRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, []byte(RecordKey(rec)), msg.Key)
	assert.Equal(t, "consumption", msg.Headers[HeaderDataset])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "NO4", payload["pricearea"])

	parsed, err := ParseRawRecord(RawMessage{Value: msg.Value, Headers: msg.Headers})
	require.NoError(t, err)
	rec.ID = RecordKey(rec)
	assert.Equal(t, rec, parsed)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2021, 1, 1, 5, 0, 0, 0, time.UTC)
	for _, in := range []string{"2021-01-01T05:00:00Z", "2021-01-01T06:00:00+01:00", "2021-01-01 05:00:00", "2021-01-01T05:00", " 2021-01-01 05:00 "} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
	"github.com/couchcryptid/energy-weather-insights/internal/observability"
)

var bergen = domain.Point{Lat: 60.3913, Lon: 5.3221}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClient returns a client against baseURL that records retry waits instead of sleeping.
func testClient(baseURL string, maxRetries int) (*Client, *[]time.Duration) {
	c := NewClient(Options{BaseURL: baseURL, Timeout: 5 * time.Second, MaxRetries: maxRetries},
		discardLogger(), observability.NewMetricsForTesting())
	var waits []time.Duration
	c.sleepFn = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

// archivePayload builds an archive response of n hours from start. Hours listed
// in nullHours get a null temperature.
func archivePayload(start time.Time, n int, nullHours ...int) []byte {
	nulls := make(map[int]bool, len(nullHours))
	for _, h := range nullHours {
		nulls[h] = true
	}

	times := make([]int64, n)
	temp := make([]any, n)
	precip := make([]any, n)
	speed := make([]any, n)
	gusts := make([]any, n)
	dir := make([]any, n)
	for i := range n {
		times[i] = start.Add(time.Duration(i) * time.Hour).Unix()
		temp[i] = -2.5 + float64(i)
		if nulls[i] {
			temp[i] = nil
		}
		precip[i] = 0.4
		speed[i] = 6.0
		gusts[i] = 11.0
		dir[i] = 225.0
	}

	body, _ := json.Marshal(map[string]any{
		"latitude":           60.4,
		"longitude":          5.3,
		"utc_offset_seconds": 3600,
		"timezone":           "Europe/Oslo",
		"hourly_units":       map[string]string{"wind_speed_10m": "m/s"},
		"hourly": map[string]any{
			"time":               times,
			"temperature_2m":     temp,
			"precipitation":      precip,
			"wind_speed_10m":     speed,
			"wind_gusts_10m":     gusts,
			"wind_direction_10m": dir,
		},
	})
	return body
}

func TestClient_FetchYear_Success(t *testing.T) {
	start := time.Date(2020, 12, 31, 23, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, archivePath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "60.3913", q.Get("latitude"))
		assert.Equal(t, "5.3221", q.Get("longitude"))
		assert.Equal(t, "2021-01-01", q.Get("start_date"))
		assert.Equal(t, "2021-12-31", q.Get("end_date"))
		assert.Equal(t, "temperature_2m,precipitation,wind_speed_10m,wind_gusts_10m,wind_direction_10m", q.Get("hourly"))
		assert.Equal(t, "era5", q.Get("models"))
		assert.Equal(t, "Europe/Oslo", q.Get("timezone"))
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Equal(t, "unixtime", q.Get("timeformat"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(archivePayload(start, 3))
	}))
	defer srv.Close()

	c, waits := testClient(srv.URL, 5)
	series, err := c.FetchYear(context.Background(), bergen, 2021)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Empty(t, *waits)
	assert.Equal(t, start, series[0].Time)
	assert.Equal(t, time.UTC, series[0].Time.Location())
	assert.InDelta(t, -2.5, series[0].Temperature, 1e-9)
	assert.InDelta(t, 0.4, series[1].Precipitation, 1e-9)
	assert.InDelta(t, 6.0, series[2].WindSpeed, 1e-9)
	assert.InDelta(t, 11.0, series[2].WindGusts, 1e-9)
	assert.InDelta(t, 225.0, series[2].WindDirection, 1e-9)
}

func TestClient_FetchYear_DropsNullHours(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archivePayload(start, 5, 1, 4))
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 0)
	series, err := c.FetchYear(context.Background(), bergen, 2021)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, start.Add(2*time.Hour), series[1].Time)
}

func TestClient_FetchYear_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write(archivePayload(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 2))
		}
	}))
	defer srv.Close()

	c, waits := testClient(srv.URL, 5)
	series, err := c.FetchYear(context.Background(), bergen, 2021)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 3 * time.Second}, *waits)
}

func TestClient_FetchYear_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, waits := testClient(srv.URL, 3)
	_, err := c.FetchYear(context.Background(), bergen, 2021)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}, *waits)
}

func TestClient_FetchYear_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Parameter 'start_date' is out of allowed range"}`))
	}))
	defer srv.Close()

	c, waits := testClient(srv.URL, 5)
	_, err := c.FetchYear(context.Background(), bergen, 1900)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "out of allowed range")
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, *waits)
}

func TestClient_FetchYear_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Six consecutive failures trip the breaker; the seventh attempt is rejected.
	c, _ := testClient(srv.URL, 10)
	_, err := c.FetchYear(context.Background(), bergen, 2021)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "circuit breaker")
	assert.Equal(t, int32(6), calls.Load())
}

func TestClient_FetchYear_InvalidPoint(t *testing.T) {
	c, _ := testClient("http://127.0.0.1:0", 0)
	_, err := c.FetchYear(context.Background(), domain.Point{Lat: 91, Lon: 0}, 2021)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestClient_FetchYear_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 5)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleepFn = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := c.FetchYear(ctx, bergen, 2021)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDecodeArchive_MismatchedColumns(t *testing.T) {
	body := []byte(`{"hourly":{"time":[1,2],"temperature_2m":[1],"precipitation":[0,0],
		"wind_speed_10m":[1,1],"wind_gusts_10m":[2,2],"wind_direction_10m":[90,90]}}`)
	_, err := decodeArchive(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature_2m has 1 values for 2 timestamps")
}

func TestDecodeArchive_SeasonBoundaryIsUTC(t *testing.T) {
	// Oslo midnight on 1 July is 22:00 UTC on 30 June.
	start := time.Date(2021, 6, 30, 22, 0, 0, 0, time.UTC)
	series, err := decodeArchive(archivePayload(start, 3))
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, []int{2020, 2020, 2021}, []int{
		domain.Season(series[0].Time), domain.Season(series[1].Time), domain.Season(series[2].Time),
	})
}

func TestDecodeArchive_RejectsKilometresPerHour(t *testing.T) {
	body := []byte(`{"hourly_units":{"wind_speed_10m":"km/h"},"hourly":{"time":[]}}`)
	_, err := decodeArchive(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "km/h")
}

func TestRetryWait(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryWait(1, nil))
	assert.Equal(t, 3200*time.Millisecond, retryWait(5, nil))
	assert.Equal(t, maxRetryWait, retryWait(20, nil))
	assert.Equal(t, 7*time.Second, retryWait(1, &statusError{status: 429, retryAfter: 7 * time.Second}))
}

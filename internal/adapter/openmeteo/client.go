// Package openmeteo fetches hourly ERA5 reanalysis weather from the Open-Meteo
// archive API, with a persistent cache decorator.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
	"github.com/couchcryptid/energy-weather-insights/internal/observability"
)

const (
	DefaultBaseURL  = "https://archive-api.open-meteo.com"
	DefaultTimezone = "Europe/Oslo"

	archivePath   = "/v1/archive"
	reanalysis    = "era5"
	backoffFactor = 200 * time.Millisecond
	maxRetryWait  = 30 * time.Second
)

// Options configure a Client. Empty strings and a zero timeout take defaults.
type Options struct {
	BaseURL    string
	Timezone   string
	Timeout    time.Duration
	MaxRetries int
	// RateLimit caps outbound requests per second. Zero disables throttling.
	RateLimit float64
}

// Client implements domain.WeatherArchive against the Open-Meteo archive API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	maxRetries int
	breaker    *gobreaker.CircuitBreaker[[]byte]
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
	sleepFn    func(ctx context.Context, d time.Duration) error
}

// NewClient creates an archive client.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timezone == "" {
		opts.Timezone = DefaultTimezone
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timezone:   opts.Timezone,
		maxRetries: max(opts.MaxRetries, 0),
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "open-meteo",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			// Rejected requests are the caller's fault, not an outage.
			IsSuccessful: func(err error) bool {
				var se *statusError
				return err == nil || (errors.As(err, &se) && !se.retryable())
			},
		}),
		logger:  logger,
		metrics: metrics,
		sleepFn: sleepContext,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(math.Ceil(opts.RateLimit))))
	}
	return c
}

// Timezone is the zone the archive is queried in. It is part of the cache key.
func (c *Client) Timezone() string {
	return c.timezone
}

// FetchYear returns the hourly series for one calendar year at p, in time order.
func (c *Client) FetchYear(ctx context.Context, p domain.Point, year int) (domain.Series, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// With unixtime the timestamps are absolute instants; timezone only selects
	// which local days start_date and end_date cover.
	params := url.Values{
		"latitude":        {strconv.FormatFloat(p.Lat, 'f', -1, 64)},
		"longitude":       {strconv.FormatFloat(p.Lon, 'f', -1, 64)},
		"start_date":      {fmt.Sprintf("%04d-01-01", year)},
		"end_date":        {fmt.Sprintf("%04d-12-31", year)},
		"hourly":          {strings.Join(domain.WeatherVariables, ",")},
		"models":          {reanalysis},
		"timezone":        {c.timezone},
		"wind_speed_unit": {"ms"},
		"timeformat":      {"unixtime"},
	}

	body, err := c.get(ctx, c.baseURL+archivePath+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	series, err := decodeArchive(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	c.logger.Debug("archive year fetched", "lat", p.Lat, "lon", p.Lon, "year", year, "samples", len(series))
	return series, nil
}

// get performs a GET through the limiter and circuit breaker, retrying 429 and
// 5xx responses and transport failures with exponential backoff.
func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleepFn(ctx, retryWait(attempt, lastErr)); err != nil {
				return nil, err
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doRequest(ctx, fullURL)
		})
		c.metrics.ArchiveAPIDuration.Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			c.metrics.ArchiveRequests.WithLabelValues("success").Inc()
			return body, nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.metrics.ArchiveRequests.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: open-meteo circuit breaker: %w", domain.ErrUpstream, err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case !isRetryable(err):
			c.metrics.ArchiveRequests.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}

		lastErr = err
		c.metrics.ArchiveRequests.WithLabelValues("retry").Inc()
		c.logger.Warn("open-meteo request failed, retrying", "attempt", attempt+1, "error", err)
	}

	c.metrics.ArchiveRequests.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("%w: open-meteo retries exhausted: %w", domain.ErrUpstream, lastErr)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp, body)
	}
	return body, nil
}

// statusError is a non-200 answer from the archive.
type statusError struct {
	status     int
	reason     string
	retryAfter time.Duration
}

func newStatusError(resp *http.Response, body []byte) *statusError {
	se := &statusError{status: resp.StatusCode}

	var apiErr struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
		se.reason = apiErr.Reason
	} else {
		se.reason = strings.TrimSpace(string(body))
	}

	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
		se.retryAfter = time.Duration(s) * time.Second
	}
	return se
}

func (e *statusError) Error() string {
	return fmt.Sprintf("open-meteo API error: status %d: %s", e.status, e.reason)
}

func (e *statusError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "open-meteo request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	var te *transportError
	return errors.As(err, &te)
}

// retryWait is backoffFactor·2^(attempt-1), or the server's Retry-After when given.
func retryWait(attempt int, lastErr error) time.Duration {
	var se *statusError
	if errors.As(lastErr, &se) && se.retryAfter > 0 {
		return min(se.retryAfter, maxRetryWait)
	}
	return min(backoffFactor<<(attempt-1), maxRetryWait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Open-Meteo archive response types. Times are unix seconds, so local-time
// ambiguity at daylight-saving changes never reaches the parser.

type archiveResponse struct {
	Hourly hourlyBlock `json:"hourly"`
	Units  hourlyUnits `json:"hourly_units"`
}

type hourlyBlock struct {
	Time          []int64    `json:"time"`
	Temperature   []*float64 `json:"temperature_2m"`
	Precipitation []*float64 `json:"precipitation"`
	WindSpeed     []*float64 `json:"wind_speed_10m"`
	WindGusts     []*float64 `json:"wind_gusts_10m"`
	WindDirection []*float64 `json:"wind_direction_10m"`
}

type hourlyUnits struct {
	WindSpeed string `json:"wind_speed_10m"`
}

// decodeArchive converts an archive payload into a UTC series. Hours where any
// variable is null (typically not yet published) are dropped. Timestamps are
// true UTC, so snow season boundaries fall at 00:00 UTC on 1 July, which is
// 02:00 in Oslo during summer time.
func decodeArchive(body []byte) (domain.Series, error) {
	var resp archiveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode archive response: %w", err)
	}
	if resp.Units.WindSpeed != "" && resp.Units.WindSpeed != "m/s" {
		return nil, fmt.Errorf("unexpected wind speed unit %q", resp.Units.WindSpeed)
	}

	h := resp.Hourly
	n := len(h.Time)
	columns := [][]*float64{h.Temperature, h.Precipitation, h.WindSpeed, h.WindGusts, h.WindDirection}
	for i, col := range columns {
		if len(col) != n {
			return nil, fmt.Errorf("hourly %s has %d values for %d timestamps", domain.WeatherVariables[i], len(col), n)
		}
	}

	series := make(domain.Series, 0, n)
	for i, ts := range h.Time {
		if h.Temperature[i] == nil || h.Precipitation[i] == nil || h.WindSpeed[i] == nil ||
			h.WindGusts[i] == nil || h.WindDirection[i] == nil {
			continue
		}
		series = append(series, domain.HourlySample{
			Time:          time.Unix(ts, 0).UTC(),
			Temperature:   *h.Temperature[i],
			Precipitation: *h.Precipitation[i],
			WindSpeed:     *h.WindSpeed[i],
			WindGusts:     *h.WindGusts[i],
			WindDirection: *h.WindDirection[i],
		})
	}
	return series.Sorted(), nil
}

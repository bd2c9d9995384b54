// Command snowdrift prints the seasonal snow drift table and wind rose for a
// coordinate, using the same archive client, cache and price area polygons as
// the service.
//
// Usage:
//
//	go run ./cmd/snowdrift -lat 60.39 -lon 5.32 -start 2019 -end 2023
//	go run ./cmd/snowdrift -lat 69.65 -lon 18.96 -start 2021 -end 2021 -f 20000 -no-cache
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/couchcryptid/energy-weather-insights/internal/adapter/geojson"
	"github.com/couchcryptid/energy-weather-insights/internal/adapter/openmeteo"
	"github.com/couchcryptid/energy-weather-insights/internal/config"
	"github.com/couchcryptid/energy-weather-insights/internal/domain"
	"github.com/couchcryptid/energy-weather-insights/internal/insights"
	"github.com/couchcryptid/energy-weather-insights/internal/observability"
)

func main() {
	lat := flag.Float64("lat", 0, "latitude (WGS-84)")
	lon := flag.Float64("lon", 0, "longitude (WGS-84)")
	start := flag.Int("start", 0, "first calendar year")
	end := flag.Int("end", 0, "last calendar year")
	t := flag.Float64("t", 0, "maximum transport distance in m (default from SNOWDRIFT_T)")
	f := flag.Float64("f", 0, "fetch distance in m (default from SNOWDRIFT_F)")
	theta := flag.Float64("theta", 0, "relocation coefficient (default from SNOWDRIFT_THETA)")
	noCache := flag.Bool("no-cache", false, "bypass the weather cache")
	flag.Parse()

	if *start == 0 || *end == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	req := insights.SnowDriftRequest{
		Point:     domain.Point{Lat: *lat, Lon: *lon},
		StartYear: *start,
		EndYear:   *end,
	}
	// Only flags given on the command line override the SNOWDRIFT_* configuration.
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "t":
			req.T = t
		case "f":
			req.F = f
		case "theta":
			req.Theta = theta
		}
	})
	os.Exit(run(cfg, req, !*noCache))
}

func run(cfg *config.Config, req insights.SnowDriftRequest, useCache bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Progress goes to stderr so the report can be piped.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewUnregisteredMetrics()

	client := openmeteo.NewClient(openmeteo.Options{
		BaseURL:    cfg.OpenMeteoBaseURL,
		Timezone:   cfg.OpenMeteoTimezone,
		Timeout:    cfg.OpenMeteoTimeout,
		MaxRetries: cfg.OpenMeteoMaxRetries,
		RateLimit:  cfg.OpenMeteoRateLimit,
	}, logger, metrics)

	opts := insights.Options{
		Archive:          client,
		FetchConcurrency: cfg.FetchConcurrency,
		Drift:            domain.DriftParams{T: cfg.SnowdriftT, F: cfg.SnowdriftF, Theta: cfg.SnowdriftTheta},
	}
	if useCache && cfg.WeatherCacheEnabled {
		cache, err := openmeteo.NewCachedArchive(ctx, client, cfg.WeatherCachePath, client.Timezone(), logger, metrics)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: open weather cache: %v\n", err)
			return 1
		}
		defer cache.Close()
		opts.Archive = cache
	}

	locator, err := geojson.Load(cfg.GeoJSONPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load price areas: %v\n", err)
		return 1
	}
	opts.Locator = locator

	report, err := insights.New(opts, logger).SnowDrift(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		if errors.Is(err, domain.ErrInvalidParams) || errors.Is(err, domain.ErrOutsideAreas) {
			return 2
		}
		return 1
	}

	printReport(message.NewPrinter(language.English), report)
	return 0
}

func printReport(p *message.Printer, r *insights.SnowDriftReport) {
	title := cases.Title(language.Norwegian)

	p.Printf("=== Snow drift %d-%d ===\n", r.StartYear, r.EndYear)
	p.Printf("Location:   %.4f, %.4f\n", r.Point.Lat, r.Point.Lon)
	if area, err := domain.LookupArea(r.PriceArea); err == nil {
		p.Printf("Price area: %s (%s)\n", area.Code, title.String(strings.ToLower(area.City)))
	} else {
		p.Printf("Price area: %s\n", r.PriceArea)
	}
	p.Printf("Params:     T=%.0f m, F=%.0f m, θ=%.2f\n", r.Params.T, r.Params.F, r.Params.Theta)
	p.Printf("Samples:    %d hourly\n\n", r.Samples)

	if r.Warning != "" {
		p.Println(r.Warning)
		return
	}

	p.Printf("%-10s %12s %12s %10s %12s %12s %10s  %s\n",
		"Season", "Qupot kg/m", "Qspot kg/m", "Srwe mm", "Qt kg/m", "Qt t/m", "SWE mm", "Control")
	for _, row := range r.Results {
		p.Printf("%-10s %12.0f %12.0f %10.1f %12.0f %12.2f %10.1f  %s\n",
			row.Season, row.Qupot, row.Qspot, row.Srwe, row.Qt, row.QtTonnes, row.SWE, row.Control)
	}
	p.Printf("\nOverall average Qt: %.0f kg/m (%.2f t/m)\n\n", r.OverallAvgQt, r.OverallAvgQtTonnes)

	p.Println("Wind rose (t/m per season):")
	peak := 0.0
	for _, s := range r.WindRose {
		peak = max(peak, s.QtTonnes)
	}
	for _, s := range r.WindRose {
		bar := 0
		if peak > 0 {
			bar = int(40 * s.QtTonnes / peak)
		}
		p.Printf("  %-4s %6.1f° %8.2f %s\n", s.Direction, s.Angle, s.QtTonnes, strings.Repeat("#", bar))
	}
}

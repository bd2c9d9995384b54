package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/energy-weather-insights/internal/adapter/csvfile"
	"github.com/couchcryptid/energy-weather-insights/internal/adapter/geojson"
	httpadapter "github.com/couchcryptid/energy-weather-insights/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/energy-weather-insights/internal/adapter/kafka"
	"github.com/couchcryptid/energy-weather-insights/internal/adapter/openmeteo"
	"github.com/couchcryptid/energy-weather-insights/internal/adapter/postgres"
	"github.com/couchcryptid/energy-weather-insights/internal/config"
	"github.com/couchcryptid/energy-weather-insights/internal/domain"
	"github.com/couchcryptid/energy-weather-insights/internal/insights"
	"github.com/couchcryptid/energy-weather-insights/internal/observability"
	"github.com/couchcryptid/energy-weather-insights/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := insights.Options{
		Drift: domain.DriftParams{
			T:     cfg.SnowdriftT,
			F:     cfg.SnowdriftF,
			Theta: cfg.SnowdriftTheta,
		},
		FetchConcurrency: cfg.FetchConcurrency,
	}
	var checkers []httpadapter.ReadinessChecker

	// Energy record store (optional; the energy endpoints answer 503 without it).
	var pool *pgxpool.Pool
	var store *postgres.Store
	if cfg.DatabaseURL != "" {
		pool, err = postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		store = postgres.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create schema", "error", err)
			pool.Close()
			os.Exit(1)
		}
		opts.Store = store
		logger.Info("energy store connected", "max_conns", cfg.DBMaxConns)
	} else {
		logger.Info("DATABASE_URL not set, energy endpoints disabled")
	}

	// Weather archive, optionally behind the on-disk cache.
	client := openmeteo.NewClient(openmeteo.Options{
		BaseURL:    cfg.OpenMeteoBaseURL,
		Timezone:   cfg.OpenMeteoTimezone,
		Timeout:    cfg.OpenMeteoTimeout,
		MaxRetries: cfg.OpenMeteoMaxRetries,
		RateLimit:  cfg.OpenMeteoRateLimit,
	}, logger, metrics)
	opts.Archive = client

	var cache *openmeteo.CachedArchive
	if cfg.WeatherCacheEnabled {
		cache, err = openmeteo.NewCachedArchive(ctx, client, cfg.WeatherCachePath, client.Timezone(), logger, metrics)
		if err != nil {
			logger.Error("failed to open weather cache", "path", cfg.WeatherCachePath, "error", err)
			os.Exit(1)
		}
		opts.Archive = cache
		logger.Info("weather cache enabled", "path", cfg.WeatherCachePath)
	}

	// Price area polygons.
	if cfg.GeoJSONPath != "" {
		locator, err := geojson.Load(cfg.GeoJSONPath)
		if err != nil {
			logger.Warn("price area polygons unavailable, locate and snow drift disabled", "path", cfg.GeoJSONPath, "error", err)
		} else {
			opts.Locator = locator
			logger.Info("price area polygons loaded", "path", cfg.GeoJSONPath, "areas", locator.Areas())
		}
	}

	// Local weather export.
	if cfg.WeatherCSVPath != "" {
		series, err := csvfile.LoadWeather(cfg.WeatherCSVPath)
		if err != nil {
			logger.Error("failed to load local weather", "path", cfg.WeatherCSVPath, "error", err)
			os.Exit(1)
		}
		opts.LocalWeather = series
		logger.Info("local weather loaded", "path", cfg.WeatherCSVPath, "samples", len(series))
	}

	svc := insights.New(opts, logger)
	checkers = append(checkers, svc)

	// Ingestion pipeline (feature-flagged via INGEST_ENABLED).
	var reader *kafkaadapter.Reader
	var p *pipeline.Pipeline
	if cfg.IngestEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		p = pipeline.New(reader, pipeline.NewTransformer(logger), store, logger, metrics, cfg.BatchSize)
		checkers = append(checkers, p)
		logger.Info("ingestion enabled", "topic", cfg.KafkaSourceTopic, "group", cfg.KafkaGroupID)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, checkers, metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start ingestion pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			logger.Error("weather cache close error", "error", err)
		}
	}
	if pool != nil {
		pool.Close()
	}

	logger.Info("shutdown complete")
}

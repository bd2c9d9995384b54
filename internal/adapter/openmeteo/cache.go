package openmeteo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
	"github.com/couchcryptid/energy-weather-insights/internal/observability"
)

const schema = `CREATE TABLE IF NOT EXISTS archive_cache (
	cache_key  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	samples    INTEGER NOT NULL,
	created_at INTEGER NOT NULL
)`

// CachedArchive wraps a WeatherArchive with a persistent SQLite cache. Entries
// never expire; the running year is not cached because it is still growing.
// Payloads are zstd-compressed JSON.
type CachedArchive struct {
	inner    domain.WeatherArchive
	db       *sql.DB
	timezone string
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewCachedArchive opens (or creates) the cache database at path and returns a
// decorator around inner. timezone is the zone inner queries in.
func NewCachedArchive(ctx context.Context, inner domain.WeatherArchive, path, timezone string, logger *slog.Logger, metrics *observability.Metrics) (*CachedArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open weather cache: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping weather cache: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create weather cache schema: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		db.Close()
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &CachedArchive{
		inner:    inner,
		db:       db,
		timezone: timezone,
		encoder:  encoder,
		decoder:  decoder,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// FetchYear serves the year from the cache, falling through to the wrapped
// archive on a miss. Cache failures are logged and never fail the request.
func (c *CachedArchive) FetchYear(ctx context.Context, p domain.Point, year int) (domain.Series, error) {
	key := cacheKey(p, year, c.timezone)

	series, ok, err := c.lookup(ctx, key)
	switch {
	case err != nil:
		c.metrics.ArchiveCache.WithLabelValues("error").Inc()
		c.logger.Warn("weather cache read failed", "key", key, "error", err)
	case ok:
		c.metrics.ArchiveCache.WithLabelValues("hit").Inc()
		return series, nil
	default:
		c.metrics.ArchiveCache.WithLabelValues("miss").Inc()
	}

	series, err = c.inner.FetchYear(ctx, p, year)
	if err != nil {
		return nil, err
	}
	if year < domain.CurrentYear() && len(series) > 0 {
		if err := c.store(ctx, key, series); err != nil {
			c.logger.Warn("weather cache write failed", "key", key, "error", err)
		}
	}
	return series, nil
}

// Close releases the database and codecs.
func (c *CachedArchive) Close() error {
	c.decoder.Close()
	encErr := c.encoder.Close()
	return errors.Join(c.db.Close(), encErr)
}

func (c *CachedArchive) lookup(ctx context.Context, key string) (domain.Series, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM archive_cache WHERE cache_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	raw, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress cache entry: %w", err)
	}
	var series domain.Series
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return series, true, nil
}

func (c *CachedArchive) store(ctx context.Context, key string, series domain.Series) error {
	raw, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	payload := c.encoder.EncodeAll(raw, nil)

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO archive_cache (cache_key, payload, samples, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, samples = excluded.samples, created_at = excluded.created_at`,
		key, payload, len(series), domain.Now().Unix())
	return err
}

// cacheKey identifies one archive request. Coordinates are rounded to 4
// decimals (about 11 m), well below the reanalysis grid spacing.
func cacheKey(p domain.Point, year int, timezone string) string {
	return fmt.Sprintf("%.4f,%.4f|%d|%s", p.Lat, p.Lon, year, timezone)
}

// entries reports how many years are cached.
func (c *CachedArchive) entries(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archive_cache`).Scan(&n)
	return n, err
}

// Package postgres stores Elhub energy records in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS energy_records (
	dataset      TEXT             NOT NULL,
	price_area   TEXT             NOT NULL,
	group_name   TEXT             NOT NULL,
	start_time   TIMESTAMPTZ      NOT NULL,
	quantity_kwh DOUBLE PRECISION NOT NULL,
	ingested_at  TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (dataset, price_area, group_name, start_time)
);
CREATE INDEX IF NOT EXISTS energy_records_start_time_idx ON energy_records (dataset, start_time);
`

const upsertRecord = `
INSERT INTO energy_records (dataset, price_area, group_name, start_time, quantity_kwh, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (dataset, price_area, group_name, start_time)
DO UPDATE SET quantity_kwh = EXCLUDED.quantity_kwh, ingested_at = EXCLUDED.ingested_at`

// DBTX is the subset of *pgxpool.Pool and pgx.Tx the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store reads and writes energy records.
// It implements pipeline.BatchLoader.
type Store struct {
	db DBTX
}

// NewStore creates a store over a pool or transaction.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the records table and its indexes if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping reports whether the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("%w: ping database: %w", domain.ErrUpstream, err)
	}
	return nil
}

// LoadBatch upserts records in one round trip. Duplicates inside the batch are
// summed first; across batches the last write wins.
func (s *Store) LoadBatch(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	merged := domain.MergeDuplicates(records)
	batch := &pgx.Batch{}
	for _, r := range merged {
		ingested := r.IngestedAt
		if ingested.IsZero() {
			ingested = domain.Now()
		}
		batch.Queue(upsertRecord, string(r.Dataset), r.PriceArea, r.Group, r.StartTime.UTC(), r.QuantityKWh, ingested)
	}

	br := s.db.SendBatch(ctx, batch)
	for i := range merged {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert record %d of %d: %w", i+1, len(merged), err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}

// Query returns the records matching f, ordered by start time, area, then group.
func (s *Store) Query(ctx context.Context, f domain.RecordFilter) ([]domain.Record, error) {
	sql, args := buildQuery(f)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query energy records: %w", domain.ErrUpstream, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var (
			r       domain.Record
			dataset string
		)
		if err := rows.Scan(&dataset, &r.PriceArea, &r.Group, &r.StartTime, &r.QuantityKWh, &r.IngestedAt); err != nil {
			return nil, fmt.Errorf("%w: scan energy record: %w", domain.ErrUpstream, err)
		}
		r.Dataset = domain.Dataset(dataset)
		r.StartTime = r.StartTime.UTC()
		r.IngestedAt = r.IngestedAt.UTC()
		r.ID = domain.RecordKey(r)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read energy records: %w", domain.ErrUpstream, err)
	}
	return out, nil
}

func buildQuery(f domain.RecordFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Dataset != "" {
		add("dataset = $%d", string(f.Dataset))
	}
	if areas := normalize(f.Areas, domain.NormalizeAreaName); len(areas) > 0 {
		add("price_area = ANY($%d)", areas)
	}
	if groups := normalize(f.Groups, strings.ToLower); len(groups) > 0 {
		add("group_name = ANY($%d)", groups)
	}
	if !f.From.IsZero() {
		add("start_time >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("start_time <= $%d", f.To.UTC())
	}

	var b strings.Builder
	b.WriteString("SELECT dataset, price_area, group_name, start_time, quantity_kwh, ingested_at FROM energy_records")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY start_time, price_area, group_name")
	return b.String(), args
}

func normalize(values []string, norm func(string) string) []string {
	var out []string
	for _, v := range values {
		if v = norm(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

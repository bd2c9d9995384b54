package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// fakeDB records statements and fails the nth batch exec when failAt > 0.
type fakeDB struct {
	execs   []string
	batches []*pgx.Batch
	execErr error
	failAt  int
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b)
	return &fakeResults{failAt: f.failAt}
}

type fakeResults struct {
	n      int
	failAt int
	closed bool
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	r.n++
	if r.failAt > 0 && r.n == r.failAt {
		return pgconn.CommandTag{}, errors.New("unique violation")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error {
	r.closed = true
	return nil
}

var t0 = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func rec(area, group string, start time.Time, qty float64) domain.Record {
	return domain.Record{
		Dataset:     domain.DatasetProduction,
		PriceArea:   area,
		Group:       group,
		StartTime:   start,
		QuantityKWh: qty,
		IngestedAt:  t0.Add(48 * time.Hour),
	}
}

func TestStore_LoadBatch_MergesDuplicates(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db)

	err := s.LoadBatch(context.Background(), []domain.Record{
		rec("NO1", "hydro", t0, 100),
		rec("NO1", "hydro", t0, 50),
		rec("NO2", "wind", t0, 10),
	})
	require.NoError(t, err)

	require.Len(t, db.batches, 1)
	queued := db.batches[0].QueuedQueries
	require.Len(t, queued, 2)
	assert.Equal(t, upsertRecord, queued[0].SQL)
	assert.Equal(t, []any{"production", "NO1", "hydro", t0, 150.0, t0.Add(48 * time.Hour)}, queued[0].Arguments)
	assert.Equal(t, "NO2", queued[1].Arguments[1])
}

func TestStore_LoadBatch_Empty(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewStore(db).LoadBatch(context.Background(), nil))
	assert.Empty(t, db.batches)
}

func TestStore_LoadBatch_ExecError(t *testing.T) {
	db := &fakeDB{failAt: 2}
	err := NewStore(db).LoadBatch(context.Background(), []domain.Record{
		rec("NO1", "hydro", t0, 1),
		rec("NO1", "hydro", t0.Add(time.Hour), 2),
		rec("NO1", "hydro", t0.Add(2*time.Hour), 3),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert record 2 of 3")
}

func TestStore_LoadBatch_StampsMissingIngestTime(t *testing.T) {
	db := &fakeDB{}
	r := rec("NO3", "solar", t0, 5)
	r.IngestedAt = time.Time{}

	require.NoError(t, NewStore(db).LoadBatch(context.Background(), []domain.Record{r}))
	ingested, ok := db.batches[0].QueuedQueries[0].Arguments[5].(time.Time)
	require.True(t, ok)
	assert.False(t, ingested.IsZero())
}

func TestStore_EnsureSchemaAndPing(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db)

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	require.Len(t, db.execs, 2)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS energy_records")

	db.execErr = errors.New("connection refused")
	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrUpstream)
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   domain.RecordFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no filter",
			filter:  domain.RecordFilter{},
			wantSQL: "SELECT dataset, price_area, group_name, start_time, quantity_kwh, ingested_at FROM energy_records ORDER BY start_time, price_area, group_name",
		},
		{
			name: "all filters",
			filter: domain.RecordFilter{
				Dataset: domain.DatasetConsumption,
				Areas:   []string{"no 1", " NO2 ", ""},
				Groups:  []string{"Hydro"},
				From:    t0,
				To:      t0.Add(24 * time.Hour),
			},
			wantSQL: "SELECT dataset, price_area, group_name, start_time, quantity_kwh, ingested_at FROM energy_records" +
				" WHERE dataset = $1 AND price_area = ANY($2) AND group_name = ANY($3) AND start_time >= $4 AND start_time <= $5" +
				" ORDER BY start_time, price_area, group_name",
			wantArgs: []any{"consumption", []string{"NO1", "NO2"}, []string{"hydro"}, t0, t0.Add(24 * time.Hour)},
		},
		{
			name:   "from only",
			filter: domain.RecordFilter{From: t0},
			wantSQL: "SELECT dataset, price_area, group_name, start_time, quantity_kwh, ingested_at FROM energy_records" +
				" WHERE start_time >= $1 ORDER BY start_time, price_area, group_name",
			wantArgs: []any{t0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildQuery(tt.filter)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

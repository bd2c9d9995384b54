package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
	"github.com/couchcryptid/energy-weather-insights/internal/observability"
)

const (
	minRetryDelay = 200 * time.Millisecond
	maxRetryDelay = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw messages from the source topic.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Transformer converts a raw message into an energy record.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawMessage) (domain.Record, error)
}

// BatchLoader writes multiple records to the store.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.Record) error
}

// Pipeline moves Elhub hourly rows from Kafka into the record store. Offsets
// are committed only once the rows they carry are stored, or when a row can
// never be parsed.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has stored at least one record.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no energy records stored yet")
	}
	return nil
}

// Ready reports whether a record has been stored.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run ingests batches until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("ingestion started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := retryDelay{next: minRetryDelay}
	for ctx.Err() == nil {
		if !p.ingest(ctx, &delay) {
			break
		}
	}
	p.logger.Info("ingestion stopped", "reason", context.Cause(ctx))
	return nil
}

// ingest fetches one batch and stores it. It returns false once the context
// is done.
func (p *Pipeline) ingest(ctx context.Context, delay *retryDelay) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("fetch from topic failed", "error", err, "retry_in", delay.next)
		return delay.wait(ctx)
	}
	if len(batch) == 0 {
		return true
	}
	delay.reset()

	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	records, pending := p.parse(ctx, batch)
	if len(records) == 0 {
		return true
	}
	records = latestPerKey(records)

	if !p.store(ctx, records, delay) {
		return false
	}
	for _, raw := range pending {
		p.commit(ctx, raw)
	}

	p.metrics.RecordsLoaded.Add(float64(len(records)))
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// parse turns the batch into records. Rows that fail to parse are committed
// straight away so they are not redelivered; the messages behind the returned
// records are committed after the store accepts them.
func (p *Pipeline) parse(ctx context.Context, batch []domain.RawMessage) ([]domain.Record, []domain.RawMessage) {
	records := make([]domain.Record, 0, len(batch))
	pending := make([]domain.RawMessage, 0, len(batch))
	for _, raw := range batch {
		rec, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("dropping unparseable energy row",
				"error", err, "topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		records = append(records, rec)
		pending = append(pending, raw)
	}
	return records, pending
}

// store upserts records, retrying the same batch until the store accepts it.
// It returns false if the context ends first.
func (p *Pipeline) store(ctx context.Context, records []domain.Record, delay *retryDelay) bool {
	for {
		err := p.loader.LoadBatch(ctx, records)
		if err == nil {
			delay.reset()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("upsert energy records failed",
			"error", err, "records", len(records), "retry_in", delay.next)
		if !delay.wait(ctx) {
			return false
		}
	}
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("offset commit failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// latestPerKey keeps the last row seen for each dataset, area, group and hour.
// A redelivered row replaces its earlier copy instead of adding to it.
func latestPerKey(records []domain.Record) []domain.Record {
	index := make(map[string]int, len(records))
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		key := domain.RecordKey(rec)
		if i, ok := index[key]; ok {
			out[i] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}

// retryDelay doubles from minRetryDelay up to maxRetryDelay between failed
// attempts.
type retryDelay struct {
	next time.Duration
}

func (d *retryDelay) reset() {
	d.next = minRetryDelay
}

// wait sleeps for the current delay and doubles it. It returns false if the
// context ends first.
func (d *retryDelay) wait(ctx context.Context) bool {
	timer := time.NewTimer(d.next)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		d.next = min(d.next*2, maxRetryDelay)
		return true
	}
}

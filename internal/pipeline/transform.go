package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// RecordTransformer implements Transformer using the domain parsing functions.
type RecordTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates a RecordTransformer.
func NewTransformer(logger *slog.Logger) *RecordTransformer {
	return &RecordTransformer{logger: logger}
}

// Transform parses the loose Elhub JSON payload and stamps the ingest time.
func (t *RecordTransformer) Transform(_ context.Context, raw domain.RawMessage) (domain.Record, error) {
	rec, err := domain.ParseRawRecord(raw)
	if err != nil {
		return domain.Record{}, err
	}
	rec = domain.NormalizeRecord(rec)
	t.logger.Debug("record parsed", "id", rec.ID, "price_area", rec.PriceArea, "group", rec.Group)
	return rec, nil
}

package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Dataset distinguishes Elhub production exports from consumption exports.
type Dataset string

const (
	DatasetProduction  Dataset = "production"
	DatasetConsumption Dataset = "consumption"
)

// ParseDataset accepts "production" or "consumption" in any case. Empty means production.
func ParseDataset(s string) (Dataset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DatasetProduction):
		return DatasetProduction, nil
	case string(DatasetConsumption):
		return DatasetConsumption, nil
	default:
		return "", fmt.Errorf("%w: dataset %q must be production or consumption", ErrInvalidParams, s)
	}
}

// RawMessage represents an unprocessed message from the source topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Record is one hourly Elhub quantity for a price area and group.
type Record struct {
	ID          string    `json:"id"`
	Dataset     Dataset   `json:"dataset"`
	PriceArea   string    `json:"price_area"`
	Group       string    `json:"group"`
	StartTime   time.Time `json:"start_time"`
	QuantityKWh float64   `json:"quantity_kwh"`
	IngestedAt  time.Time `json:"ingested_at,omitempty"`
}

// OutboundMessage is the serialized form of a record destined for the source topic.
type OutboundMessage struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// RecordFilter selects records from a store. Zero fields match everything.
type RecordFilter struct {
	Dataset Dataset
	Areas   []string
	Groups  []string
	From    time.Time
	To      time.Time
}

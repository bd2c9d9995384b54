package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeaderDataset carries the dataset of a raw message when the payload omits it.
const HeaderDataset = "dataset"

// Column aliases seen across Elhub exports, checked in order after lower-casing.
var (
	areaAliases     = []string{"pricearea", "elspotomr", "price_area", "pricearea_name"}
	groupAliases    = []string{"productiongroup", "consumptiongroup", "group", "production_group", "prodgroup"}
	quantityAliases = []string{"quantitykwh", "quantity"}
	startAliases    = []string{"starttime", "time", "timestamp", "start_time"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseRawRecord deserializes a RawMessage's value into a Record.
// Keys are matched case-insensitively against the known column aliases.
func ParseRawRecord(raw RawMessage) (Record, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw.Value, &fields); err != nil {
		return Record{}, fmt.Errorf("parse raw record: %w", err)
	}
	lower := make(map[string]any, len(fields))
	for k, v := range fields {
		lower[strings.ToLower(strings.TrimSpace(k))] = v
	}

	area, ok := lookupString(lower, areaAliases)
	if !ok || NormalizeAreaName(area) == "" {
		return Record{}, errors.New("parse raw record: missing price area")
	}
	group, ok := lookupString(lower, groupAliases)
	if !ok || strings.TrimSpace(group) == "" {
		return Record{}, errors.New("parse raw record: missing group")
	}
	startRaw, ok := lookupString(lower, startAliases)
	if !ok {
		return Record{}, errors.New("parse raw record: missing start time")
	}
	start, err := ParseTimestamp(startRaw)
	if err != nil {
		return Record{}, fmt.Errorf("parse raw record: %w", err)
	}

	datasetName, _ := lookupString(lower, []string{"dataset"})
	if datasetName == "" {
		datasetName = raw.Headers[HeaderDataset]
	}
	dataset, err := ParseDataset(datasetName)
	if err != nil {
		return Record{}, fmt.Errorf("parse raw record: %w", err)
	}

	rec := Record{
		Dataset:     dataset,
		PriceArea:   NormalizeAreaName(area),
		Group:       strings.ToLower(strings.TrimSpace(group)),
		StartTime:   start,
		QuantityKWh: lookupFloatOrZero(lower, quantityAliases),
	}
	rec.ID = RecordKey(rec)
	return rec, nil
}

// NormalizeRecord stamps the ingest time on a parsed record.
func NormalizeRecord(rec Record) Record {
	rec.IngestedAt = clock.Now().UTC()
	return rec
}

// NormalizeAreaName upper-cases an area name and drops all whitespace ("no 2" -> "NO2").
func NormalizeAreaName(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "")
}

// ParseTimestamp accepts the timestamp layouts found in Elhub exports and returns UTC.
// Layouts without an offset are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// RecordKey produces a deterministic ID from a record's identifying fields.
// Replaying the same message yields the same key, so loads are idempotent.
func RecordKey(rec Record) string {
	input := fmt.Sprintf("%s|%s|%s|%s", rec.Dataset, rec.PriceArea, rec.Group, rec.StartTime.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}

// SerializeRecord encodes a record for publication on the source topic.
func SerializeRecord(rec Record) (OutboundMessage, error) {
	payload := map[string]any{
		"dataset":     string(rec.Dataset),
		"pricearea":   rec.PriceArea,
		"group":       rec.Group,
		"starttime":   rec.StartTime.UTC().Format(time.RFC3339),
		"quantitykwh": rec.QuantityKWh,
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return OutboundMessage{}, fmt.Errorf("marshal record: %w", err)
	}
	return OutboundMessage{
		Key:   []byte(RecordKey(rec)),
		Value: value,
		Headers: map[string]string{
			HeaderDataset: string(rec.Dataset),
			"price_area":  rec.PriceArea,
		},
	}, nil
}

func lookupString(fields map[string]any, aliases []string) (string, bool) {
	for _, alias := range aliases {
		v, ok := fields[alias]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return t, true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		default:
			return fmt.Sprint(t), true
		}
	}
	return "", false
}

// lookupFloatOrZero returns 0 for missing or non-numeric quantities.
func lookupFloatOrZero(fields map[string]any, aliases []string) float64 {
	for _, alias := range aliases {
		v, ok := fields[alias]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return 0
			}
			return f
		default:
			return 0
		}
	}
	return 0
}

package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Year categories accepted by UniqueYears.
const (
	CategoryPriceArea = "price_area"
	CategoryGroup     = "group"
)

// GroupTotal is one slice of a production or consumption pie.
type GroupTotal struct {
	Group       string  `json:"group"`
	QuantityKWh float64 `json:"quantity_kwh"`
	Color       string  `json:"color"`
}

// TimeValue is one point of an aggregated hourly series.
type TimeValue struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// AreaMean is the mean hourly quantity of one price area over a trailing window.
type AreaMean struct {
	PriceArea string    `json:"price_area"`
	MeanKWh   float64   `json:"mean_kwh"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Color     string    `json:"color,omitempty"`
}

// MergeDuplicates sums the quantities of records sharing dataset, area, group and
// start time. The first occurrence's position is kept.
func MergeDuplicates(records []Record) []Record {
	index := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		key := RecordKey(rec)
		if i, ok := index[key]; ok {
			out[i].QuantityKWh += rec.QuantityKWh
			if rec.IngestedAt.After(out[i].IngestedAt) {
				out[i].IngestedAt = rec.IngestedAt
			}
			continue
		}
		rec.ID = key
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}

// FilterAreas keeps records in the given price areas. No areas keeps everything.
func FilterAreas(records []Record, areas []string) []Record {
	if len(areas) == 0 {
		return records
	}
	want := normalizedSet(areas, NormalizeAreaName)
	var out []Record
	for _, rec := range records {
		if _, ok := want[rec.PriceArea]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// TotalsByGroup sums quantities per group across the selected areas, sorted by group.
func TotalsByGroup(records []Record, areas []string, palette *Palette) ([]GroupTotal, error) {
	if len(areas) == 0 {
		return nil, fmt.Errorf("%w: select at least one price area", ErrInvalidParams)
	}

	sums := make(map[string]float64)
	for _, rec := range FilterAreas(records, areas) {
		sums[rec.Group] += rec.QuantityKWh
	}

	groups := make([]string, 0, len(sums))
	for g := range sums {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	out := make([]GroupTotal, len(groups))
	for i, g := range groups {
		out[i] = GroupTotal{Group: g, QuantityKWh: sums[g]}
		if palette != nil {
			out[i].Color = palette.Color(g)
		}
	}
	return out, nil
}

// FilterMonth keeps the records of the given groups that start within month,
// ordered by time then group. No groups keeps every group.
func FilterMonth(records []Record, groups []string, month YearMonth) []Record {
	want := normalizedSet(groups, strings.ToLower)
	var out []Record
	for _, rec := range records {
		if MonthOf(rec.StartTime) != month {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[rec.Group]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].Group < out[j].Group
	})
	return out
}

// FilterGroup keeps records of a single group. An empty group keeps everything.
func FilterGroup(records []Record, group string) []Record {
	if group == "" {
		return records
	}
	group = strings.ToLower(group)
	var out []Record
	for _, rec := range records {
		if rec.Group == group {
			out = append(out, rec)
		}
	}
	return out
}

// HourlyTotals sums quantities across areas and groups per timestamp, in time order.
func HourlyTotals(records []Record) []TimeValue {
	sums := make(map[int64]float64)
	for _, rec := range records {
		sums[rec.StartTime.Unix()] += rec.QuantityKWh
	}
	keys := make([]int64, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]TimeValue, len(keys))
	for i, k := range keys {
		out[i] = TimeValue{Time: time.Unix(k, 0).UTC(), Value: sums[k]}
	}
	return out
}

// UniqueYears lists the sorted distinct years present for each price area or group.
func UniqueYears(records []Record, category string) (map[string][]int, error) {
	var keyOf func(Record) string
	switch category {
	case CategoryPriceArea:
		keyOf = func(r Record) string { return r.PriceArea }
	case CategoryGroup:
		keyOf = func(r Record) string { return r.Group }
	default:
		return nil, fmt.Errorf("%w: category %q must be %s or %s", ErrInvalidParams, category, CategoryPriceArea, CategoryGroup)
	}

	seen := make(map[string]map[int]struct{})
	for _, rec := range records {
		k := keyOf(rec)
		if seen[k] == nil {
			seen[k] = make(map[int]struct{})
		}
		seen[k][rec.StartTime.UTC().Year()] = struct{}{}
	}

	out := make(map[string][]int, len(seen))
	for k, years := range seen {
		list := make([]int, 0, len(years))
		for y := range years {
			list = append(list, y)
		}
		sort.Ints(list)
		out[k] = list
	}
	return out, nil
}

// AreaMeans computes, for every price area, the mean quantity of group over the
// trailing days ending at that area's latest record (inclusive). Results are
// ordered by area and colored on a green-to-red ramp.
func AreaMeans(records []Record, group string, days int) ([]AreaMean, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be at least 1", ErrInvalidParams)
	}

	byArea := make(map[string][]Record)
	for _, rec := range FilterGroup(records, group) {
		byArea[rec.PriceArea] = append(byArea[rec.PriceArea], rec)
	}

	areas := make([]string, 0, len(byArea))
	for a := range byArea {
		areas = append(areas, a)
	}
	sort.Strings(areas)

	out := make([]AreaMean, 0, len(areas))
	for _, area := range areas {
		recs := byArea[area]
		end := recs[0].StartTime
		for _, r := range recs[1:] {
			if r.StartTime.After(end) {
				end = r.StartTime
			}
		}
		start := end.Add(-time.Duration(days) * 24 * time.Hour)

		var sum float64
		var n int
		for _, r := range recs {
			if r.StartTime.Before(start) || r.StartTime.After(end) {
				continue
			}
			sum += r.QuantityKWh
			n++
		}
		out = append(out, AreaMean{PriceArea: area, MeanKWh: sum / float64(n), From: start, To: end})
	}

	if len(out) > 0 {
		lo, hi := out[0].MeanKWh, out[0].MeanKWh
		for _, m := range out[1:] {
			lo = min(lo, m.MeanKWh)
			hi = max(hi, m.MeanKWh)
		}
		for i := range out {
			out[i].Color = RampColor(out[i].MeanKWh, lo, hi)
		}
	}
	return out, nil
}

func normalizedSet(values []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = norm(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

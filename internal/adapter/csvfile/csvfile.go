// Package csvfile reads the CSV exports the service works with: Open-Meteo
// hourly weather downloads and Elhub production/consumption tables.
package csvfile

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// LoadWeather reads a weather CSV from disk.
func LoadWeather(path string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weather csv: %w", err)
	}
	defer f.Close()
	return ReadWeather(f)
}

// ReadWeather parses an hourly weather CSV with a "time" column followed by
// variable columns. Headers may carry a unit suffix, as in Open-Meteo's
// "temperature_2m (°C)". Rows with an empty value are skipped.
func ReadWeather(r io.Reader) (domain.Series, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	colIdx := headerIndex(header, weatherColumn)
	timeCol, ok := colIdx["time"]
	if !ok {
		return nil, errors.New("weather csv: missing time column")
	}
	varCols := make([]int, len(domain.WeatherVariables))
	for i, v := range domain.WeatherVariables {
		idx, ok := colIdx[v]
		if !ok {
			return nil, fmt.Errorf("weather csv: missing %s column", v)
		}
		varCols[i] = idx
	}

	var series domain.Series
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		ts, err := domain.ParseTimestamp(get(row, timeCol))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values, complete, err := parseValues(row, varCols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !complete {
			continue
		}
		series = append(series, domain.HourlySample{
			Time:          ts,
			Temperature:   values[0],
			Precipitation: values[1],
			WindSpeed:     values[2],
			WindGusts:     values[3],
			WindDirection: values[4],
		})
	}
	return series.Sorted(), nil
}

func parseValues(row []string, cols []int) ([]float64, bool, error) {
	values := make([]float64, len(cols))
	for i, col := range cols {
		raw := get(row, col)
		if raw == "" {
			return nil, false, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", domain.WeatherVariables[i], err)
		}
		values[i] = v
	}
	return values, true, nil
}

// ReadEnergyRecords parses an Elhub CSV export. Each row goes through the same
// alias-tolerant parser as messages on the source topic; dataset applies when
// the file has no dataset column.
func ReadEnergyRecords(r io.Reader, dataset domain.Dataset) ([]domain.Record, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	colIdx := headerIndex(header, strings.TrimSpace)
	headers := map[string]string{domain.HeaderDataset: string(dataset)}

	var records []domain.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		fields := make(map[string]string, len(colIdx))
		for name, i := range colIdx {
			fields[name] = get(row, i)
		}
		value, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: marshal row: %w", line, err)
		}
		rec, err := domain.ParseRawRecord(domain.RawMessage{Value: value, Headers: headers})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// weatherColumn maps "Wind_Speed_10m (m/s)" to "wind_speed_10m".
func weatherColumn(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if i := strings.Index(h, " ("); i >= 0 {
		h = h[:i]
	}
	return h
}

func headerIndex(header []string, norm func(string) string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		// Excel exports prepend a byte order mark.
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		idx[norm(h)] = i
	}
	return idx
}

func get(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

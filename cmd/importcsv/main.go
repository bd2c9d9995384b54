// Command importcsv reads Elhub CSV exports and publishes the records to the
// source topic, where the ingestion pipeline picks them up. Rows go through the
// same parser as topic messages, so a file that imports cleanly also ingests
// cleanly.
//
// Usage:
//
//	go run ./cmd/importcsv -dataset production data/production_2021.csv
//	go run ./cmd/importcsv -dataset consumption -dry-run data/consumption_*.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/couchcryptid/energy-weather-insights/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/energy-weather-insights/internal/adapter/kafka"
	"github.com/couchcryptid/energy-weather-insights/internal/config"
	"github.com/couchcryptid/energy-weather-insights/internal/domain"
	"github.com/couchcryptid/energy-weather-insights/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	datasetFlag := flag.String("dataset", "production", "dataset of files without a dataset column: production or consumption")
	batch := flag.Int("batch", 500, "records per publish call")
	dryRun := flag.Bool("dry-run", false, "parse and summarize without publishing")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("no CSV files given")
	}
	if *batch < 1 {
		return fmt.Errorf("-batch must be positive")
	}
	dataset, err := domain.ParseDataset(*datasetFlag)
	if err != nil {
		return err
	}

	var records []domain.Record //nolint:prealloc // size depends on CSV file contents
	for _, path := range flag.Args() {
		recs, err := readFile(path, dataset)
		if err != nil {
			return fmt.Errorf("processing %s: %w", path, err)
		}
		log.Printf("%s: %d records", path, len(recs))
		records = append(records, recs...)
	}
	records = domain.MergeDuplicates(records)
	log.Printf("total: %d records after merging duplicates", len(records))
	printStats(records)

	if *dryRun {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)
	writer := kafkaadapter.NewWriter(cfg, logger)
	defer writer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for chunk := range slices.Chunk(records, *batch) {
		if err := writer.PublishRecords(ctx, chunk); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	logger.Info("import complete", slog.Int("records", len(records)), slog.String("topic", cfg.KafkaSourceTopic))
	return nil
}

func readFile(path string, dataset domain.Dataset) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return csvfile.ReadEnergyRecords(f, dataset)
}

type groupCount struct {
	key   string
	count int
	kwh   float64
}

func printStats(records []domain.Record) {
	byArea := map[string]*groupCount{}
	byGroup := map[string]*groupCount{}
	var first, last domain.Record
	for i, rec := range records {
		tally(byArea, rec.PriceArea, rec.QuantityKWh)
		tally(byGroup, rec.Group, rec.QuantityKWh)
		if i == 0 || rec.StartTime.Before(first.StartTime) {
			first = rec
		}
		if i == 0 || rec.StartTime.After(last.StartTime) {
			last = rec
		}
	}

	fmt.Println("\n=== Import summary ===")
	fmt.Printf("Records: %d\n", len(records))
	if len(records) > 0 {
		fmt.Printf("Range: %s .. %s\n", first.StartTime.Format("2006-01-02 15:04"), last.StartTime.Format("2006-01-02 15:04"))
	}
	printCounts("By price area", byArea)
	printCounts("By group", byGroup)
}

func tally(m map[string]*groupCount, key string, kwh float64) {
	c, ok := m[key]
	if !ok {
		c = &groupCount{key: key}
		m[key] = c
	}
	c.count++
	c.kwh += kwh
}

func printCounts(title string, m map[string]*groupCount) {
	counts := make([]*groupCount, 0, len(m))
	for _, c := range m {
		counts = append(counts, c)
	}
	slices.SortFunc(counts, func(a, b *groupCount) int { return b.count - a.count })
	fmt.Printf("%s (%d):\n", title, len(counts))
	for _, c := range counts {
		fmt.Printf("  %-12s %8d rows %16.0f kWh\n", c.key, c.count, c.kwh)
	}
}

package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"payguard/internal/ledger"
	"payguard/internal/money"
)

// Export renders ledger history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Bucket <= 0 {
		opts.Bucket = time.Hour
	}

	opts.MaxPoints = a.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.GetAllRecords(ctx, ledger.Filter{GroupName: opts.GroupName})
	if err != nil {
		return err
	}

	records = filterWindow(records, opts.From, opts.To)
	if len(records) == 0 {
		a.Logger.Info().Msg("no payment records found for export window")
		return nil
	}

	a.Logger.Info().Int("records", len(records)).Msg("exporting payment records")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, records); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		buckets := bucketVolumes(records, opts.Bucket)
		buckets = downsampleBuckets(buckets, opts.MaxPoints)
		if err := writeVolumePNG(opts.PNGPath, buckets); err != nil {
			return err
		}
	}

	return nil
}

func filterWindow(records []ledger.PaymentRecord, from, to *time.Time) []ledger.PaymentRecord {
	if from == nil && to == nil {
		return records
	}
	kept := records[:0]
	for _, record := range records {
		if from != nil && record.Timestamp.Before(*from) {
			continue
		}
		if to != nil && record.Timestamp.After(*to) {
			continue
		}
		kept = append(kept, record)
	}
	return kept
}

func writeRecordsCSV(path string, records []ledger.PaymentRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "group", "scope", "direction", "amount_base_units", "amount_usd", "tenant_id"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{
			record.Timestamp.UTC().Format(time.RFC3339Nano),
			record.GroupName,
			record.Scope,
			string(record.Direction),
			record.Amount.String(),
			money.FormatUSD(record.Amount),
			record.TenantID,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

type volumeBucket struct {
	start    time.Time
	outgoing float64
	incoming float64
}

func bucketVolumes(records []ledger.PaymentRecord, bucket time.Duration) []volumeBucket {
	byStart := make(map[time.Time]*volumeBucket)
	for _, record := range records {
		start := record.Timestamp.UTC().Truncate(bucket)
		entry, ok := byStart[start]
		if !ok {
			entry = &volumeBucket{start: start}
			byStart[start] = entry
		}
		usd := decimal.NewFromBigInt(record.Amount, -money.Decimals).InexactFloat64()
		if record.Direction == ledger.Outgoing {
			entry.outgoing += usd
		} else {
			entry.incoming += usd
		}
	}

	buckets := make([]volumeBucket, 0, len(byStart))
	for _, entry := range byStart {
		buckets = append(buckets, *entry)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].start.Before(buckets[j].start) })
	return buckets
}

func downsampleBuckets(buckets []volumeBucket, max int) []volumeBucket {
	if max <= 0 || len(buckets) <= max {
		return buckets
	}

	result := make([]volumeBucket, 0, max)
	step := float64(len(buckets)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(buckets) {
			idx = len(buckets) - 1
		}
		result = append(result, buckets[idx])
	}
	return result
}

func writeVolumePNG(path string, buckets []volumeBucket) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(buckets))
	outgoing := make([]float64, len(buckets))
	incoming := make([]float64, len(buckets))
	for i, bucket := range buckets {
		x[i] = bucket.start
		outgoing[i] = bucket.outgoing
		incoming[i] = bucket.incoming
	}

	usdFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Volume (USD)",
			ValueFormatter: usdFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Outgoing",
				XValues: x,
				YValues: outgoing,
			},
			chart.TimeSeries{
				Name:    "Incoming",
				XValues: x,
				YValues: incoming,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

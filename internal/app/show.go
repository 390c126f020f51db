package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"payguard/internal/ledger"
	"payguard/internal/money"
)

// Show prints recent ledger records.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.GetAllRecords(ctx, ledger.Filter{
		GroupName: opts.GroupName,
		Direction: ledger.Direction(opts.Direction),
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no payment records found")
		return nil
	}

	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[len(records)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tGroup\tScope\tDirection\tAmount (USD)")

	for _, record := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			record.Timestamp.UTC().Format(time.RFC3339),
			sanitizeInline(record.GroupName),
			sanitizeInline(record.Scope),
			record.Direction,
			money.FormatUSD(record.Amount),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

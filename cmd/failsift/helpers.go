package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/storage/memory"
	"github.com/failsift/failsift/internal/storage/sqldb"
)

// openStores opens the configured storage backend for one-shot commands
// that read it directly instead of going through a detector.
func openStores() (ports.FailureStore, ports.ActionStore, func(), error) {
	if cfg.Storage.Driver == "memory" {
		store := memory.New()
		return store, store, func() { _ = store.Close() }, nil
	}

	store, err := sqldb.New(sqldb.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return store, store, func() { _ = store.Close() }, nil
}

// readPayloadFile parses a YAML or JSON payload file into a batch. A file
// holding a single object becomes a one-element batch.
func readPayloadFile(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}

	var batch []map[string]any
	if err := yaml.Unmarshal(data, &batch); err == nil {
		return batch, nil
	}

	var single map[string]any
	if err := yaml.Unmarshal(data, &single); err == nil {
		return []map[string]any{single}, nil
	}

	return nil, fmt.Errorf("payload file %s is neither a list nor an object", path)
}

// printReport writes a one-line run summary followed by a pattern table.
func printReport(cmd *cobra.Command, report domain.DetectionReport) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "run %s: %d failures fetched, %d patterns, %d actions persisted, %d notifications (%s, %s)\n",
		report.RunID, report.FailuresFetched, report.PatternsDetected,
		report.ActionsPersisted, report.NotificationsSent,
		report.Strategy, report.Duration.Round(time.Millisecond))

	if report.Degraded {
		fmt.Fprintf(out, "degraded to fallback clustering: %s\n", report.DegradedReason)
	}
	for _, msg := range report.PatternErrors {
		fmt.Fprintf(out, "pattern error: %s\n", msg)
	}

	if len(report.Patterns) == 0 {
		return
	}

	w := table.NewWriter()
	w.SetOutputMirror(out)
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"PATTERN", "SERVICES", "ERROR TYPES", "COUNT", "CONF", "FIRST", "LAST"})
	for _, p := range report.Patterns {
		w.AppendRow(table.Row{
			p.PatternID,
			strings.Join(p.AffectedServices, ", "),
			strings.Join(p.ErrorTypes, ", "),
			p.FailureCount,
			fmt.Sprintf("%.0f%%", p.Confidence),
			p.FirstOccurrence.Format(time.RFC3339),
			p.LastOccurrence.Format(time.RFC3339),
		})
	}
	w.Render()
}

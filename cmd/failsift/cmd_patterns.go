package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect detected patterns",
}

var patternsListFlags struct {
	days  int
	limit int
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns detected in the recent window",
	RunE:  runPatternsList,
}

var patternsShowCmd = &cobra.Command{
	Use:   "show <pattern-id>",
	Short: "Print one pattern as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsShow,
}

func init() {
	f := patternsListCmd.Flags()
	f.IntVar(&patternsListFlags.days, "days", 7, "Lookback window in days")
	f.IntVar(&patternsListFlags.limit, "limit", 50, "Maximum patterns to list")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsShowCmd)
}

func runPatternsList(cmd *cobra.Command, _ []string) error {
	_, actions, closeStores, err := openStores()
	if err != nil {
		return err
	}
	defer closeStores()

	since := time.Now().UTC().Add(-time.Duration(patternsListFlags.days) * 24 * time.Hour)
	results, err := actions.QueryActions(cmd.Context(), ports.ActionFilter{
		Since:      since,
		AgentType:  domain.AgentTypePatternDetection,
		ActionType: domain.ActionTypeAlert,
		Limit:      patternsListFlags.limit,
	})
	if err != nil {
		return fmt.Errorf("query actions: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no patterns detected in the last %d days\n", patternsListFlags.days)
		return nil
	}

	w := table.NewWriter()
	w.SetOutputMirror(cmd.OutOrStdout())
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"PATTERN", "DETECTED", "SERVICES", "ERROR TYPES", "COUNT", "CONF"})
	for _, a := range results {
		p, err := a.PatternDetails()
		if err != nil {
			// Skip envelopes whose payload does not decode; the table is
			// a summary, not an audit.
			continue
		}
		w.AppendRow(table.Row{
			p.PatternID,
			a.Timestamp.Format(time.RFC3339),
			strings.Join(p.AffectedServices, ", "),
			strings.Join(p.ErrorTypes, ", "),
			p.FailureCount,
			fmt.Sprintf("%.0f%%", p.Confidence),
		})
	}
	w.Render()
	return nil
}

func runPatternsShow(cmd *cobra.Command, args []string) error {
	_, actions, closeStores, err := openStores()
	if err != nil {
		return err
	}
	defer closeStores()

	results, err := actions.QueryActions(cmd.Context(), ports.ActionFilter{
		PatternID: args[0],
		Limit:     1,
	})
	if err != nil {
		return fmt.Errorf("query actions: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("pattern %s not found", args[0])
	}

	p, err := results[0].PatternDetails()
	if err != nil {
		return fmt.Errorf("decode pattern: %w", err)
	}

	out := struct {
		domain.Pattern
		DetectedAt time.Time `json:"detected_at"`
	}{Pattern: p, DetectedAt: results[0].Timestamp}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

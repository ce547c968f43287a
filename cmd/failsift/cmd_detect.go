package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/failsift/failsift/internal/logging"
	"github.com/failsift/failsift/internal/runtime"
)

var detectFlags struct {
	window int
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one detection pass and print the resulting patterns",
	Long: `Fetches the failure window from storage, clusters it, persists an alert
action per pattern, and prints a summary table. Notifications go to the
configured sink exactly as they would from the running service.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().IntVar(&detectFlags.window, "window", 0, "Lookback window in hours (default from config)")
}

func runDetect(cmd *cobra.Command, _ []string) error {
	if detectFlags.window > 0 {
		cfg.Detection.WindowHours = detectFlags.window
	}

	d, err := runtime.New(
		runtime.WithConfig(cfg),
		runtime.WithConfiguredStorage(),
		runtime.WithLogger(logging.New("detect")),
	)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	defer func() {
		if err := d.Shutdown(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	report, err := d.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	printReport(cmd, report)
	return nil
}

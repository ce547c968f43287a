package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/failsift/failsift/internal/config"
	"github.com/failsift/failsift/internal/logging"
	"github.com/failsift/failsift/internal/registration"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string

	// cfg is loaded by the root PersistentPreRunE before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "failsift",
	Short: "Failure pattern detection for CI test runs",
	Long: "Failsift ingests CI test failures, clusters them into recurring\n" +
		"patterns, and records an alert action for every pattern it finds.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}

		level := flagLogLevel
		if level == "" {
			level = cfg.Logging.Level
		}
		format := flagLogFormat
		if format == "" {
			format = cfg.Logging.Format
		}
		logging.Init(level, format)

		registration.RegisterBuiltins()
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", config.DefaultPath, "Path to config file")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: json or text (default from config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

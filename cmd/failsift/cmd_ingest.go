package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/failsift/failsift/internal/logging"
	"github.com/failsift/failsift/internal/runtime"
)

var ingestFlags struct {
	source string
	file   string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Normalize and store failures from a payload file",
	Long: `Reads a YAML or JSON payload file holding one failure object or a list
of them, normalizes each through the source adapter named by --source,
and appends the records to the failure store.`,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestFlags.source, "source", "generic", "Source adapter: github_actions, jenkins, gitlab, generic")
	f.StringVarP(&ingestFlags.file, "file", "f", "", "Payload file path (required)")
	_ = ingestCmd.MarkFlagRequired("file")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	payloads, err := readPayloadFile(ingestFlags.file)
	if err != nil {
		return err
	}

	d, err := runtime.New(
		runtime.WithConfig(cfg),
		runtime.WithConfiguredStorage(),
		runtime.WithLogger(logging.New("ingest")),
	)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	defer func() {
		if err := d.Shutdown(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	ids, err := d.Ingest(cmd.Context(), ingestFlags.source, payloads)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d failures from %s\n", len(ids), ingestFlags.file)
	return nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/failsift/failsift/internal/features"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the text vectorizer model",
}

var modelFitFlags struct {
	days int
	out  string
}

var modelFitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the vectorizer vocabulary from stored failures",
	Long: `Fits the text vectorizer on the error messages and stack traces of
stored failures and writes the vocabulary to a model file. Point
clustering.model_path at the file to reuse the vocabulary across runs
instead of refitting per batch.`,
	RunE: runModelFit,
}

func init() {
	f := modelFitCmd.Flags()
	f.IntVar(&modelFitFlags.days, "days", 30, "Fit on failures from the last N days")
	f.StringVarP(&modelFitFlags.out, "out", "o", "failsift-model.json", "Output model path")

	modelCmd.AddCommand(modelFitCmd)
}

func runModelFit(cmd *cobra.Command, _ []string) error {
	failures, _, closeStores, err := openStores()
	if err != nil {
		return err
	}
	defer closeStores()

	since := time.Now().UTC().Add(-time.Duration(modelFitFlags.days) * 24 * time.Hour)
	records, err := failures.QueryFailures(cmd.Context(), since)
	if err != nil {
		return fmt.Errorf("query failures: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no failures stored in the last %d days", modelFitFlags.days)
	}

	docs := make([]string, len(records))
	for i, rec := range records {
		docs[i] = rec.Text()
	}

	v := features.New(features.WithMaxFeatures(cfg.Features.MaxTerms))
	if err := v.Fit(docs); err != nil {
		return fmt.Errorf("fit vectorizer: %w", err)
	}

	data, err := v.Save()
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(modelFitFlags.out, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "fitted %d terms from %d failures, wrote %s\n",
		v.NumFeatures(), len(records), modelFitFlags.out)
	return nil
}

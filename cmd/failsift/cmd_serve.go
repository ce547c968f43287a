package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/failsift/failsift/internal/logging"
	"github.com/failsift/failsift/internal/runtime"
	"github.com/failsift/failsift/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection service",
	Long: `Starts the HTTP API, the detection scheduler, and the retention sweep,
then blocks until SIGINT or SIGTERM. Storage, clustering, and the
notification sink all come from the config file.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logging.New("failsift")

	stopTracer, err := telemetry.Init(logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := stopTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	d, err := runtime.New(
		runtime.WithConfigFile(flagConfig),
		runtime.WithConfiguredStorage(),
		runtime.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start detector: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping detector")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return d.Shutdown(shutdownCtx)
}

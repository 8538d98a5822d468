package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/benchtrack/pkg/api"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read API server",
	Long: `Serve the history document, per-benchmark series and recorded alerts
over HTTP until interrupted.`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.API == nil {
		return fmt.Errorf("api section is required in config")
	}

	if err := cfg.ValidateAPI(); err != nil {
		return fmt.Errorf("validating api config: %w", err)
	}

	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}

	srv := api.NewServer(log, cfg, backend)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	// Wait for shutdown signal.
	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down API server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping api server: %w", err)
	}

	return nil
}

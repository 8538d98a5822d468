package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/benchtrack/pkg/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the SQL index of benchmark points",
}

var indexSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the history document into the index once",
	RunE:  runIndexSync,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexSyncCmd)
}

func runIndexSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateIndex(); err != nil {
		return fmt.Errorf("validating index config: %w", err)
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}

	store := index.NewStore(log, &cfg.Index.Database)
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting index store: %w", err)
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close index store")
		}
	}()

	idx := index.NewIndexer(log, store, backend, 0, cfg.Index.Concurrency)

	if err := idx.RunPass(ctx); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	log.Info("Index synced")

	return nil
}

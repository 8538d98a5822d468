package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/storage"
)

var retainCmd = &cobra.Command{
	Use:   "retain",
	Short: "Trim old entries from the history document",
	Long: `Drop entries beyond the newest --max-entries per suite and entries older
than --max-age. Flags default to store.retention from config.`,
	RunE: runRetain,
}

// errNothingRemoved aborts the update so an unchanged document is not
// rewritten.
var errNothingRemoved = errors.New("nothing removed")

var (
	retainMaxEntries int
	retainMaxAge     time.Duration
)

func init() {
	rootCmd.AddCommand(retainCmd)
	retainCmd.Flags().IntVar(&retainMaxEntries, "max-entries", 0,
		"Keep only the newest N entries per suite")
	retainCmd.Flags().DurationVar(&retainMaxAge, "max-age", 0,
		"Drop entries older than this (e.g. 2160h)")
}

func runRetain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	policy, err := cfg.Store.RetentionPolicy()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("max-entries") {
		if retainMaxEntries < 0 {
			return fmt.Errorf("--max-entries must not be negative")
		}

		policy.MaxEntries = retainMaxEntries
	}

	if cmd.Flags().Changed("max-age") {
		policy.MaxAge = retainMaxAge
	}

	if policy.IsZero() {
		log.Info("No retention limits configured, nothing to do")

		return nil
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}

	var removed int

	err = storage.Update(ctx, log, backend, updateOptions(cfg), func(s *history.Store) error {
		removed = s.Retain(policy)
		if removed == 0 {
			return errNothingRemoved
		}

		return nil
	})
	if errors.Is(err, errNothingRemoved) {
		log.Info("No entries matched the retention limits")

		return nil
	}

	if err != nil {
		return fmt.Errorf("applying retention: %w", err)
	}

	log.WithFields(logrus.Fields{
		"removed":     removed,
		"max_entries": policy.MaxEntries,
		"max_age":     policy.MaxAge,
	}).Info("History trimmed")

	return nil
}

package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/benchtrack/pkg/config"
	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/storage"
)

// loadConfig loads and validates the --config files. The configured log
// level applies unless --log-level was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !cmd.Flags().Changed("log-level") {
		level, _ := logrus.ParseLevel(cfg.Global.LogLevel)
		log.SetLevel(level)
	}

	return cfg, nil
}

// openBackend creates the storage backend and, for S3, checks that the
// bucket is reachable.
func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	backend, err := storage.New(log, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating storage backend: %w", err)
	}

	if s3b, ok := backend.(*storage.S3Backend); ok {
		if err := s3b.Preflight(ctx); err != nil {
			return nil, fmt.Errorf("checking storage backend: %w", err)
		}
	}

	log.WithField("backend", backend.Name()).Debug("Storage backend ready")

	return backend, nil
}

func updateOptions(cfg *config.Config) storage.UpdateOptions {
	return storage.UpdateOptions{
		RepoURL: cfg.Store.RepoURL,
		StoreOptions: []history.Option{
			history.WithAlertConfig(cfg.Store.HistoryAlertConfig()),
		},
		Encode: history.EncodeOptions{
			Format: cfg.Store.DocumentFormat(),
			Indent: true,
		},
		MaxAttempts: cfg.Storage.MaxAttempts,
	}
}

// suiteName returns the --suite flag value, or the configured default.
func suiteName(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}

	return cfg.Store.Suite
}

// parseRepoURL extracts owner and repository from a GitHub repository URL
// such as https://github.com/ethpandaops/benchtrack.
func parseRepoURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing repository url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository url %q is not of the form <host>/<owner>/<repo>", raw)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

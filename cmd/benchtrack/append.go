package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/benchtrack/pkg/commitinfo"
	"github.com/ethpandaops/benchtrack/pkg/config"
	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/index"
	"github.com/ethpandaops/benchtrack/pkg/ingest"
	"github.com/ethpandaops/benchtrack/pkg/report"
	"github.com/ethpandaops/benchtrack/pkg/storage"
)

const maxMarkdownChars = 65000

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Record a benchmark run and check it for regressions",
	Long: `Parse the output of a benchmark tool, resolve the commit it ran at and
append the results to the history document. Alerts raised against the
suite's history are logged and optionally written as markdown.`,
	RunE: runAppend,
}

var (
	appendSuite         string
	appendTool          string
	appendFile          string
	appendEventPath     string
	appendCommitSHA     string
	appendDate          int64
	appendSummaryOutput string
	appendFailOnAlert   bool
)

func init() {
	rootCmd.AddCommand(appendCmd)
	appendCmd.Flags().StringVar(&appendSuite, "suite", "",
		"Suite name (default: store.suite from config)")
	appendCmd.Flags().StringVar(&appendTool, "tool", "",
		"Benchmark tool ("+strings.Join(history.Tools(), ", ")+")")
	appendCmd.Flags().StringVar(&appendFile, "file", "-",
		`Benchmark output file, "-" reads stdin`)
	appendCmd.Flags().StringVar(&appendEventPath, "commit-from-event", "",
		"GitHub event payload to take the commit from (default: $GITHUB_EVENT_PATH)")
	appendCmd.Flags().StringVar(&appendCommitSHA, "commit-sha", "",
		"Commit SHA to fetch from the GitHub API")
	appendCmd.Flags().Int64Var(&appendDate, "date", 0,
		"Entry date in unix milliseconds (default: now)")
	appendCmd.Flags().StringVar(&appendSummaryOutput, "summary-output", "",
		"Append a markdown summary to this file (e.g. $GITHUB_STEP_SUMMARY)")
	appendCmd.Flags().BoolVar(&appendFailOnAlert, "fail-on-alert", false,
		"Exit with an error when a regression is detected")

	appendCmd.MarkFlagsMutuallyExclusive("commit-from-event", "commit-sha")

	if err := appendCmd.MarkFlagRequired("tool"); err != nil {
		panic(err)
	}
}

func runAppend(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tool := history.Tool(appendTool)
	if !ingest.Supported(tool) {
		return &ingest.UnsupportedToolError{Tool: tool}
	}

	benches, err := readBenches(tool, appendFile)
	if err != nil {
		return err
	}

	commitInfo, err := resolveCommit(ctx, cfg)
	if err != nil {
		return fmt.Errorf("resolving commit: %w", err)
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}

	suite := suiteName(appendSuite, cfg)
	entry := history.Entry{
		Commit:  *commitInfo,
		Date:    appendDate,
		Tool:    tool,
		Benches: benches,
	}

	if entry.Date == 0 {
		entry.Date = time.Now().UnixMilli()
	}

	retention, err := cfg.Store.RetentionPolicy()
	if err != nil {
		return err
	}

	var result *history.AppendResult

	err = storage.Update(ctx, log, backend, updateOptions(cfg), func(s *history.Store) error {
		res, err := s.Append(suite, entry)
		if err != nil {
			return err
		}

		if removed := s.Retain(retention); removed > 0 {
			log.WithField("removed", removed).Info("Trimmed history")
		}

		result = res

		return nil
	})

	var dup *history.DuplicateCommitError
	if errors.As(err, &dup) {
		log.WithFields(logrus.Fields{
			"suite":  dup.Suite,
			"commit": dup.CommitID,
		}).Warn("Commit already recorded, nothing to do")

		return nil
	}

	if err != nil {
		return fmt.Errorf("appending entry: %w", err)
	}

	log.WithFields(logrus.Fields{
		"suite":   suite,
		"commit":  result.Stored.Commit.ID,
		"benches": len(result.Stored.Benches),
		"alerts":  len(result.Alerts),
	}).Info("Entry recorded")

	logAlerts(suite, result.Alerts)

	if cfg.IndexEnabled() && len(result.Alerts) > 0 {
		if err := recordAlerts(ctx, cfg, suite, result); err != nil {
			log.WithError(err).Warn("Failed to record alerts in index")
		}
	}

	if appendSummaryOutput != "" {
		md := report.SummaryMarkdown(suite, result.Stored)
		md += report.AlertMarkdown(report.AlertInput{
			Suite:     suite,
			RepoURL:   cfg.Store.RepoURL,
			Entry:     result.Stored,
			Alerts:    result.Alerts,
			Threshold: cfg.Store.Alert.Threshold,
		}, maxMarkdownChars)

		if err := appendToFile(appendSummaryOutput, md); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}

	regressions := countRegressions(result.Alerts)
	if regressions > 0 && (appendFailOnAlert || cfg.Store.Alert.FailOnAlert) {
		return fmt.Errorf("%d benchmark regression(s) detected in suite %q", regressions, suite)
	}

	return nil
}

func readBenches(tool history.Tool, path string) ([]history.BenchResult, error) {
	var r io.Reader = os.Stdin

	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // path from the command line
		if err != nil {
			return nil, fmt.Errorf("opening benchmark output: %w", err)
		}
		defer f.Close()

		r = f
	}

	return ingest.Parse(tool, r)
}

// resolveCommit returns the commit from --commit-sha or an event payload.
// Without either flag, $GITHUB_EVENT_PATH is used.
func resolveCommit(ctx context.Context, cfg *config.Config) (*history.CommitInfo, error) {
	resolver, err := commitinfo.NewResolver(log, cfg.GitHub.Token, cfg.GitHub.APIURL)
	if err != nil {
		return nil, err
	}

	if appendCommitSHA != "" {
		owner, repo, err := parseRepoURL(cfg.Store.RepoURL)
		if err != nil {
			return nil, err
		}

		return resolver.Fetch(ctx, owner, repo, appendCommitSHA)
	}

	path := appendEventPath
	if path == "" {
		path = os.Getenv("GITHUB_EVENT_PATH")
	}

	if path == "" {
		return nil, fmt.Errorf("one of --commit-from-event or --commit-sha is required")
	}

	return resolver.FromEvent(ctx, path)
}

func logAlerts(suite string, alerts []history.Alert) {
	for _, a := range alerts {
		entry := log.WithFields(logrus.Fields{
			"suite":    suite,
			"bench":    a.Name,
			"kind":     a.Kind,
			"baseline": a.Baseline,
			"current":  a.Current,
			"unit":     a.Unit,
		})

		switch a.Kind {
		case history.AlertRegression:
			entry.WithField("ratio", a.Ratio).Warn("Performance regression")
		case history.AlertImprovement:
			entry.WithField("ratio", a.Ratio).Info("Performance improvement")
		default:
			entry.Warn("Zero value, ratio cannot be computed")
		}
	}
}

func recordAlerts(
	ctx context.Context,
	cfg *config.Config,
	suite string,
	result *history.AppendResult,
) error {
	store := index.NewStore(log, &cfg.Index.Database)
	if err := store.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close index store")
		}
	}()

	return store.RecordAlerts(ctx, suite, result.Stored, result.Alerts)
}

func countRegressions(alerts []history.Alert) int {
	var n int

	for _, a := range alerts {
		if a.Kind == history.AlertRegression {
			n++
		}
	}

	return n
}

func appendToFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // path from the command line
	if err != nil {
		return err
	}

	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}

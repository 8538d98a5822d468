package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/benchtrack/pkg/storage"
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Print the recorded values of one benchmark",
	RunE:  runSeries,
}

var (
	seriesSuite  string
	seriesBench  string
	seriesOutput string
)

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.Flags().StringVar(&seriesSuite, "suite", "",
		"Suite name (default: store.suite from config)")
	seriesCmd.Flags().StringVar(&seriesBench, "bench", "",
		"Benchmark name")
	seriesCmd.Flags().StringVarP(&seriesOutput, "output", "o", "table",
		`Output format: "table", "json" or "yaml"`)

	if err := seriesCmd.MarkFlagRequired("bench"); err != nil {
		panic(err)
	}
}

// seriesPoint is the printed form of a history.Point.
type seriesPoint struct {
	Date     int64   `json:"date" yaml:"date"`
	Value    float64 `json:"value" yaml:"value"`
	CommitID string  `json:"commit_id" yaml:"commit_id"`
}

func runSeries(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}

	store, err := storage.Load(ctx, log, backend, cfg.Store.RepoURL)
	if err != nil {
		return err
	}

	seq, err := store.Series(suiteName(seriesSuite, cfg), seriesBench)
	if err != nil {
		return err
	}

	var points []seriesPoint
	for p := range seq {
		points = append(points, seriesPoint(p))
	}

	return writeSeries(cmd.OutOrStdout(), seriesOutput, points)
}

func writeSeries(w io.Writer, format string, points []seriesPoint) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if points == nil {
			points = []seriesPoint{}
		}

		return enc.Encode(points)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(points); err != nil {
			return err
		}

		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "DATE\tVALUE\tCOMMIT")

		for _, p := range points {
			fmt.Fprintf(tw, "%s\t%s\t%s\n",
				time.UnixMilli(p.Date).UTC().Format(time.RFC3339),
				strconv.FormatFloat(p.Value, 'f', -1, 64),
				p.CommitID,
			)
		}

		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format %q (use table, json or yaml)", format)
	}
}

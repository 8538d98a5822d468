package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/benchtrack/pkg/config"
	"github.com/ethpandaops/benchtrack/pkg/history"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "github", input: "https://github.com/ethpandaops/benchtrack", wantOwner: "ethpandaops", wantRepo: "benchtrack"},
		{name: "trailing slash", input: "https://github.com/ethpandaops/benchtrack/", wantOwner: "ethpandaops", wantRepo: "benchtrack"},
		{name: "git suffix", input: "https://github.com/ethpandaops/benchtrack.git", wantOwner: "ethpandaops", wantRepo: "benchtrack"},
		{name: "enterprise", input: "https://ghe.example.com/team/svc", wantOwner: "team", wantRepo: "svc"},
		{name: "missing repo", input: "https://github.com/ethpandaops", wantErr: true},
		{name: "too deep", input: "https://github.com/a/b/c", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := parseRepoURL(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestWriteSeries(t *testing.T) {
	points := []seriesPoint{
		{Date: 1700000000000, Value: 12.5, CommitID: "aaa"},
		{Date: 1700000060000, Value: 13, CommitID: "bbb"},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeSeries(&buf, "json", points))
		assert.JSONEq(t,
			`[{"date":1700000000000,"value":12.5,"commit_id":"aaa"},{"date":1700000060000,"value":13,"commit_id":"bbb"}]`,
			buf.String())
	})

	t.Run("json empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeSeries(&buf, "json", nil))
		assert.JSONEq(t, `[]`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeSeries(&buf, "yaml", points[:1]))
		assert.Contains(t, buf.String(), "commit_id: aaa")
		assert.Contains(t, buf.String(), "value: 12.5")
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeSeries(&buf, "table", points))

		out := buf.String()
		assert.Contains(t, out, "DATE")
		assert.Contains(t, out, "2023-11-14T22:13:20Z")
		assert.Contains(t, out, "bbb")
	})

	t.Run("unsupported", func(t *testing.T) {
		err := writeSeries(&bytes.Buffer{}, "csv", points)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported output format")
	})
}

func TestCountRegressions(t *testing.T) {
	alerts := []history.Alert{
		{Kind: history.AlertRegression, Name: "a"},
		{Kind: history.AlertImprovement, Name: "b"},
		{Kind: history.AlertIndeterminate, Name: "c"},
		{Kind: history.AlertRegression, Name: "d"},
	}

	assert.Equal(t, 2, countRegressions(alerts))
	assert.Zero(t, countRegressions(nil))
}

func TestSuiteName(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Suite: "Benchmark"}}

	assert.Equal(t, "Benchmark", suiteName("", cfg))
	assert.Equal(t, "Go", suiteName("Go", cfg))
}

func TestAppendToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")

	require.NoError(t, appendToFile(path, "first\n"))
	require.NoError(t, appendToFile(path, "second\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestUpdateOptions(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Store.RepoURL = "https://github.com/ethpandaops/benchtrack"

	opts := updateOptions(cfg)
	assert.Equal(t, cfg.Store.RepoURL, opts.RepoURL)
	assert.Equal(t, history.FormatJS, opts.Encode.Format)
	assert.Equal(t, config.DefaultMaxAttempts, opts.MaxAttempts)
	assert.Len(t, opts.StoreOptions, 1)
}

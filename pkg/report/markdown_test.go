package report

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

const repoURL = "https://github.com/ethpandaops/benchtrack"

func testEntry() history.Entry {
	return history.Entry{
		Commit: history.CommitInfo{
			ID:      "0123456789abcdef0123456789abcdef01234567",
			Message: "Speed up parser\n\nLonger body.",
		},
		Date: 1704164645000,
		Tool: history.ToolGo,
		Benches: []history.BenchResult{
			{Name: "BenchmarkParse", Value: 15, Unit: "ns/op", Extra: "100 times\n8 procs"},
			{Name: "BenchmarkParse - B/op", Value: 64, Unit: "B/op", Range: "± 2"},
		},
	}
}

func TestAlertMarkdown(t *testing.T) {
	in := AlertInput{
		Suite:     "Benchmark",
		RepoURL:   repoURL,
		Entry:     testEntry(),
		Threshold: 0.5,
		Alerts: []history.Alert{
			{
				Kind:           history.AlertRegression,
				Name:           "BenchmarkParse",
				Unit:           "ns/op",
				Ratio:          10.0 / 15.0,
				Baseline:       10,
				Current:        15,
				PreviousCommit: "fedcba9876543210fedcba9876543210fedcba98",
			},
			{
				Kind:    history.AlertIndeterminate,
				Name:    "BenchmarkParse - B/op",
				Unit:    "B/op",
				Current: 64,
			},
		},
	}

	md := AlertMarkdown(in, 0)

	assert.Contains(t, md, "# Performance Alert: Benchmark")
	assert.Contains(t, md, "regression detected in 1 benchmark(s)")
	assert.Contains(t, md, "threshold `50%`")
	assert.Contains(t, md, "[`0123456`]("+repoURL+"/commit/0123456789abcdef0123456789abcdef01234567)")
	assert.Contains(t, md, "| `BenchmarkParse` | regression | 10 ns/op ([`fedcba9`]("+repoURL+
		"/commit/fedcba9876543210fedcba9876543210fedcba98)) | 15 ns/op | 0.67 |")
	assert.Contains(t, md, "| `BenchmarkParse - B/op` | indeterminate | 0 B/op (-) | 64 B/op | n/a |")
}

func TestAlertMarkdown_NoAlerts(t *testing.T) {
	assert.Empty(t, AlertMarkdown(AlertInput{Suite: "s", Entry: testEntry()}, 0))
}

func TestAlertMarkdown_Truncation(t *testing.T) {
	alerts := make([]history.Alert, 0, 50)
	for i := range 50 {
		alerts = append(alerts, history.Alert{
			Kind:     history.AlertRegression,
			Name:     fmt.Sprintf("BenchmarkCase%02d", i),
			Unit:     "ns/op",
			Ratio:    0.25,
			Baseline: 1,
			Current:  4,
		})
	}

	const maxChars = 1000

	md := AlertMarkdown(AlertInput{Suite: "s", Entry: testEntry(), Alerts: alerts, Threshold: 0.5}, maxChars)

	assert.LessOrEqual(t, len(md), maxChars)
	assert.Contains(t, md, "more alert(s) not shown (output truncated at 1000 chars)")
	assert.Contains(t, md, "BenchmarkCase00")
	assert.NotContains(t, md, "BenchmarkCase49")
}

func TestSummaryMarkdown(t *testing.T) {
	md := SummaryMarkdown("Benchmark", testEntry())

	assert.True(t, strings.HasPrefix(md, "# Benchmark Results: Benchmark\n"))
	assert.Contains(t, md, "| Commit | `0123456` |")
	assert.Contains(t, md, "| Message | Speed up parser |")
	assert.Contains(t, md, "| Date | 2024-01-02 03:04:05 UTC |")
	assert.Contains(t, md, "| `BenchmarkParse` | 15 ns/op |  | 100 times<br>8 procs |")
	assert.Contains(t, md, "| `BenchmarkParse - B/op` | 64 B/op | ± 2 |  |")
}

func TestEscapeCell(t *testing.T) {
	assert.Equal(t, `a\|b<br>c`, escapeCell("a|b\nc"))
}

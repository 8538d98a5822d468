// Package report renders benchmark results and alerts as markdown, for CI
// job summaries and pull request comments.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

// AlertInput is everything an alert comment mentions.
type AlertInput struct {
	Suite     string
	RepoURL   string
	Entry     history.Entry
	Alerts    []history.Alert
	Threshold float64
}

// AlertMarkdown renders the alerts raised by one appended entry. The output
// is capped at maxChars characters; zero means no limit.
func AlertMarkdown(in AlertInput, maxChars int) string {
	if len(in.Alerts) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.Grow(2048)

	fmt.Fprintf(&sb, "# Performance Alert: %s\n\n", in.Suite)

	regressions := 0

	for _, a := range in.Alerts {
		if a.Kind == history.AlertRegression {
			regressions++
		}
	}

	if regressions > 0 {
		fmt.Fprintf(&sb,
			"Possible performance regression detected in %d benchmark(s). "+
				"Results of commit %s are worse than the baseline beyond the alert threshold `%s`.\n\n",
			regressions, commitLink(in.RepoURL, in.Entry.Commit.ID), formatPercent(in.Threshold))
	} else {
		fmt.Fprintf(&sb, "Benchmark results of commit %s changed notably.\n\n",
			commitLink(in.RepoURL, in.Entry.Commit.ID))
	}

	sb.WriteString("| Benchmark | Kind | Previous | Current | Ratio |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	// Reserve space for the truncation message.
	const reserveChars = 100

	for i, a := range in.Alerts {
		ratio := "n/a"
		if a.Kind != history.AlertIndeterminate {
			ratio = strconv.FormatFloat(a.Ratio, 'f', 2, 64)
		}

		row := fmt.Sprintf("| `%s` | %s | %s (%s) | %s | %s |\n",
			escapeCell(a.Name), a.Kind,
			formatValue(a.Baseline, a.Unit), commitLink(in.RepoURL, a.PreviousCommit),
			formatValue(a.Current, a.Unit), ratio)

		if maxChars > 0 && sb.Len()+len(row)+reserveChars > maxChars {
			fmt.Fprintf(&sb,
				"\n*%d more alert(s) not shown (output truncated at %d chars)*\n",
				len(in.Alerts)-i, maxChars)

			return sb.String()
		}

		sb.WriteString(row)
	}

	return sb.String()
}

// SummaryMarkdown renders every bench of an entry as a table.
func SummaryMarkdown(suite string, entry history.Entry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Benchmark Results: %s\n\n", suite)

	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(&sb, "| Commit | `%s` |\n", shortSHA(entry.Commit.ID))

	if entry.Commit.Message != "" {
		subject, _, _ := strings.Cut(entry.Commit.Message, "\n")
		fmt.Fprintf(&sb, "| Message | %s |\n", escapeCell(subject))
	}

	fmt.Fprintf(&sb, "| Tool | %s |\n", entry.Tool)
	fmt.Fprintf(&sb, "| Date | %s |\n",
		time.UnixMilli(entry.Date).UTC().Format("2006-01-02 15:04:05 UTC"))
	sb.WriteByte('\n')

	sb.WriteString("| Benchmark | Value | Range | Extra |\n")
	sb.WriteString("|---|---|---|---|\n")

	for _, b := range entry.Benches {
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n",
			escapeCell(b.Name), formatValue(b.Value, b.Unit),
			escapeCell(b.Range), escapeCell(b.Extra))
	}

	return sb.String()
}

func commitLink(repoURL, id string) string {
	if id == "" {
		return "-"
	}

	if repoURL == "" {
		return "`" + shortSHA(id) + "`"
	}

	return fmt.Sprintf("[`%s`](%s/commit/%s)", shortSHA(id), strings.TrimRight(repoURL, "/"), id)
}

func shortSHA(id string) string {
	if len(id) > 7 {
		return id[:7]
	}

	return id
}

func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == "" {
		return s
	}

	return s + " " + unit
}

func formatPercent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', -1, 64) + "%"
}

// escapeCell keeps cell content on one table row.
func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", "<br>").Replace(s)
}

package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

// test bench_fib_20 ... bench:      31,270 ns/iter (+/- 1,231)
var cargoBenchLine = regexp.MustCompile(
	`^test\s+(\S+)\s+\.\.\.\s+bench:\s+([\d,.]+)\s+(\S+)\s+\(\+/-\s+([\d,.]+)\)`,
)

func parseCargo(data []byte) ([]history.BenchResult, error) {
	var results []history.BenchResult

	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		m := cargoBenchLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}

		value, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid value %q: %w", m[1], m[2], err)
		}

		results = append(results, history.BenchResult{
			Name:  m[1],
			Value: value,
			Unit:  m[3],
			Range: "± " + strings.ReplaceAll(m[4], ",", ""),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

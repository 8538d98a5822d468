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

// BenchmarkDecode-8   	  500000	      2340 ns/op	     480 B/op	       3 allocs/op
var goBenchLine = regexp.MustCompile(`^(Benchmark\S*?)(?:-(\d+))?\s+(\d+)\s+(.+)$`)

type goBench struct {
	pkg     string
	name    string
	procs   string
	times   string
	metrics [][2]string
}

func parseGo(data []byte) ([]history.BenchResult, error) {
	var (
		benches  []goBench
		pkg      string
		packages = make(map[string]struct{}, 1)
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if rest, ok := strings.CutPrefix(line, "pkg:"); ok {
			pkg = strings.TrimSpace(rest)
			packages[pkg] = struct{}{}

			continue
		}

		m := goBenchLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		fields := strings.Fields(m[4])
		if len(fields)%2 != 0 {
			return nil, fmt.Errorf("%s: unpaired value/unit in %q", m[1], m[4])
		}

		b := goBench{pkg: pkg, name: m[1], procs: m[2], times: m[3]}
		for i := 0; i < len(fields); i += 2 {
			b.metrics = append(b.metrics, [2]string{fields[i], fields[i+1]})
		}

		benches = append(benches, b)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	multiPkg := len(packages) > 1

	var results []history.BenchResult

	for _, b := range benches {
		name := b.name
		if multiPkg && b.pkg != "" {
			name = b.pkg + "." + name
		}

		extra := b.times + " times"
		if b.procs != "" {
			extra += "\n" + b.procs + " procs"
		}

		for i, metric := range b.metrics {
			value, err := strconv.ParseFloat(metric[0], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid value %q: %w", b.name, metric[0], err)
			}

			metricName := name
			if i > 0 {
				metricName = name + " - " + metric[1]
			}

			results = append(results, history.BenchResult{
				Name:  metricName,
				Value: value,
				Unit:  metric[1],
				Extra: extra,
			})
		}
	}

	return results, nil
}

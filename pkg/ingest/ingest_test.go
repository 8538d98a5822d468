package ingest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/ingest"
)

const goOutput = `goos: linux
goarch: amd64
pkg: github.com/ethpandaops/benchtrack/pkg/history
cpu: AMD Ryzen 9 5950X 16-Core Processor
BenchmarkAppend-32          	  500000	      2340 ns/op	     480 B/op	       3 allocs/op
BenchmarkSeries/long-32     	 1000000	      1043 ns/op
PASS
ok  	github.com/ethpandaops/benchtrack/pkg/history	3.012s
`

const goMultiPkgOutput = `pkg: example.com/a
BenchmarkFoo-4   	100	  12.5 ns/op
pkg: example.com/b
BenchmarkFoo   	200	  7 ns/op
`

const cargoOutput = `
running 3 tests
test tests::ignored ... ignored
test bench_fib_10 ... bench:         135 ns/iter (+/- 24)
test bench_fib_20 ... bench:      31,270 ns/iter (+/- 1,231)

test result: ok. 0 passed; 0 failed; 1 ignored; 2 measured; 0 filtered out
`

func TestParse_Go(t *testing.T) {
	results, err := ingest.Parse(history.ToolGo, strings.NewReader(goOutput))
	require.NoError(t, err)

	assert.Equal(t, []history.BenchResult{
		{Name: "BenchmarkAppend", Value: 2340, Unit: "ns/op", Extra: "500000 times\n32 procs"},
		{Name: "BenchmarkAppend - B/op", Value: 480, Unit: "B/op", Extra: "500000 times\n32 procs"},
		{Name: "BenchmarkAppend - allocs/op", Value: 3, Unit: "allocs/op", Extra: "500000 times\n32 procs"},
		{Name: "BenchmarkSeries/long", Value: 1043, Unit: "ns/op", Extra: "1000000 times\n32 procs"},
	}, results)
}

func TestParse_GoMultiplePackages(t *testing.T) {
	results, err := ingest.Parse(history.ToolGo, strings.NewReader(goMultiPkgOutput))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "example.com/a.BenchmarkFoo", results[0].Name)
	assert.InDelta(t, 12.5, results[0].Value, 1e-9)
	assert.Equal(t, "100 times\n4 procs", results[0].Extra)

	assert.Equal(t, "example.com/b.BenchmarkFoo", results[1].Name)
	assert.Equal(t, "200 times", results[1].Extra)
}

func TestParse_Cargo(t *testing.T) {
	results, err := ingest.Parse(history.ToolCargo, strings.NewReader(cargoOutput))
	require.NoError(t, err)

	assert.Equal(t, []history.BenchResult{
		{Name: "bench_fib_10", Value: 135, Unit: "ns/iter", Range: "± 24"},
		{Name: "bench_fib_20", Value: 31270, Unit: "ns/iter", Range: "± 1231"},
	}, results)
}

func TestParse_Custom(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []history.BenchResult
		wantErr string
	}{
		{
			name:  "numbers",
			input: `[{"name": "throughput", "value": 512.5, "unit": "req/s", "range": "± 3", "extra": "runs=5"}]`,
			want: []history.BenchResult{
				{Name: "throughput", Value: 512.5, Unit: "req/s", Range: "± 3", Extra: "runs=5"},
			},
		},
		{
			name:  "numeric string value",
			input: `[{"name": "latency", "value": "12", "unit": "ms"}]`,
			want:  []history.BenchResult{{Name: "latency", Value: 12, Unit: "ms"}},
		},
		{
			name:    "missing name",
			input:   `[{"value": 1, "unit": "ms"}]`,
			wantErr: "name is required",
		},
		{
			name:    "missing value",
			input:   `[{"name": "x", "unit": "ms"}]`,
			wantErr: "value is required",
		},
		{
			name:    "non numeric value",
			input:   `[{"name": "x", "value": "fast"}]`,
			wantErr: "parsing customSmallerIsBetter output",
		},
		{
			name:    "not an array",
			input:   `{"name": "x"}`,
			wantErr: "expected a JSON array",
		},
		{
			name:    "empty array",
			input:   `[]`,
			wantErr: "no benchmark results found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := ingest.Parse(history.ToolCustomSmallerIsBetter, strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, results)
		})
	}
}

func TestParse_NoResults(t *testing.T) {
	_, err := ingest.Parse(history.ToolGo, strings.NewReader("PASS\nok  \tpkg\t0.1s\n"))
	require.ErrorIs(t, err, ingest.ErrNoResults)
}

func TestParse_UnsupportedTool(t *testing.T) {
	_, err := ingest.Parse(history.ToolJMH, strings.NewReader("[]"))

	var unsupported *ingest.UnsupportedToolError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, history.ToolJMH, unsupported.Tool)
	assert.False(t, ingest.Supported(history.ToolJMH))
	assert.True(t, ingest.Supported(history.ToolCargo))
}

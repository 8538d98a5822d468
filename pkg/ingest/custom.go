package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

type customBench struct {
	Name  string  `mapstructure:"name"`
	Value float64 `mapstructure:"value"`
	Unit  string  `mapstructure:"unit"`
	Range string  `mapstructure:"range"`
	Extra string  `mapstructure:"extra"`
}

// parseCustom reads a JSON array of {name, value, unit, range, extra}.
// Values given as numeric strings are accepted.
func parseCustom(data []byte) ([]history.BenchResult, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("expected a JSON array of benchmarks: %w", err)
	}

	var benches []customBench

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &benches,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, err
	}

	results := make([]history.BenchResult, 0, len(benches))

	for i, b := range benches {
		if b.Name == "" {
			return nil, fmt.Errorf("benchmark %d: name is required", i)
		}

		if _, ok := raw[i]["value"]; !ok {
			return nil, fmt.Errorf("benchmark %q: value is required", b.Name)
		}

		results = append(results, history.BenchResult{
			Name:  b.Name,
			Value: b.Value,
			Unit:  b.Unit,
			Range: b.Range,
			Extra: b.Extra,
		})
	}

	return results, nil
}

// Package ingest converts the output of benchmark tools into bench results.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

// ErrNoResults is returned when the input holds no benchmark results.
var ErrNoResults = errors.New("no benchmark results found")

// UnsupportedToolError is returned for tools without a parser.
type UnsupportedToolError struct {
	Tool history.Tool
}

func (e *UnsupportedToolError) Error() string {
	return fmt.Sprintf("no parser for tool %q", e.Tool)
}

type parser func(data []byte) ([]history.BenchResult, error)

var parsers = map[history.Tool]parser{
	history.ToolCustomBiggerIsBetter:  parseCustom,
	history.ToolCustomSmallerIsBetter: parseCustom,
	history.ToolGo:                    parseGo,
	history.ToolCargo:                 parseCargo,
}

// Supported reports whether Parse handles tool.
func Supported(tool history.Tool) bool {
	_, ok := parsers[tool]

	return ok
}

// Parse reads tool output from r.
func Parse(tool history.Tool, r io.Reader) ([]history.BenchResult, error) {
	p, ok := parsers[tool]
	if !ok {
		return nil, &UnsupportedToolError{Tool: tool}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s output: %w", tool, err)
	}

	results, err := p(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if err != nil {
		return nil, fmt.Errorf("parsing %s output: %w", tool, err)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("parsing %s output: %w", tool, ErrNoResults)
	}

	return results, nil
}

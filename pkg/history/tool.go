package history

import "sort"

// Tool identifies the benchmark harness output format. It also encodes
// whether larger or smaller values are better.
type Tool string

const (
	ToolCustomBiggerIsBetter  Tool = "customBiggerIsBetter"
	ToolCustomSmallerIsBetter Tool = "customSmallerIsBetter"
	ToolBenchmarkJS           Tool = "benchmarkjs"
	ToolPytest                Tool = "pytest"
	ToolGo                    Tool = "go"
	ToolCargo                 Tool = "cargo"
	ToolGoogleCPP             Tool = "googlecpp"
	ToolCatch2                Tool = "catch2"
	ToolJulia                 Tool = "julia"
	ToolJMH                   Tool = "jmh"
	ToolBenchmarkDotNet       Tool = "benchmarkdotnet"
	ToolBenchmarkLuau         Tool = "benchmarkluau"
)

// knownTools maps each supported tool to whether its values improve as
// they grow. Tools mapped to false report costs such as time per op.
var knownTools = map[Tool]bool{
	ToolCustomBiggerIsBetter:  true,
	ToolCustomSmallerIsBetter: false,
	ToolBenchmarkJS:           true,
	ToolPytest:                true,
	ToolGo:                    false,
	ToolCargo:                 false,
	ToolGoogleCPP:             false,
	ToolCatch2:                false,
	ToolJulia:                 false,
	ToolJMH:                   false,
	ToolBenchmarkDotNet:       false,
	ToolBenchmarkLuau:         false,
}

// Valid reports whether t is a supported tool.
func (t Tool) Valid() bool {
	_, ok := knownTools[t]

	return ok
}

// BiggerIsBetter reports whether larger values of t are improvements.
func (t Tool) BiggerIsBetter() bool {
	return knownTools[t]
}

// Tools returns all supported tool identifiers, sorted.
func Tools() []string {
	out := make([]string, 0, len(knownTools))
	for t := range knownTools {
		out = append(out, string(t))
	}

	sort.Strings(out)

	return out
}

package history

import "fmt"

// AlertKind classifies an Alert.
type AlertKind string

const (
	AlertRegression    AlertKind = "regression"
	AlertImprovement   AlertKind = "improvement"
	AlertIndeterminate AlertKind = "indeterminate"
)

// Comparison selects how the baseline is derived from prior values.
type Comparison string

const (
	// ComparePrevious uses the most recent prior value.
	ComparePrevious Comparison = "previous"
	// CompareMean uses the arithmetic mean of the window.
	CompareMean Comparison = "mean"
)

const (
	// DefaultAlertThreshold fires a regression once a benchmark is twice as
	// bad as its baseline.
	DefaultAlertThreshold = 0.5

	// DefaultImprovementThreshold fires an improvement once a benchmark is
	// twice as good as its baseline.
	DefaultImprovementThreshold = 1.0
)

// AlertConfig controls regression checking.
type AlertConfig struct {
	// AlertThreshold is the tolerated fraction of degradation. A ratio below
	// 1-AlertThreshold is a regression.
	AlertThreshold float64
	// AlertOnImprovement enables improvement alerts.
	AlertOnImprovement bool
	// ImprovementThreshold is the fraction of improvement above which an
	// improvement alert fires.
	ImprovementThreshold float64
	// Comparison selects the baseline. Empty means ComparePrevious.
	Comparison Comparison
	// Range limits the window to the last Range prior values. Zero or less
	// means all prior values.
	Range int
}

// DefaultAlertConfig returns the configuration used when none is given.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		AlertThreshold:       DefaultAlertThreshold,
		ImprovementThreshold: DefaultImprovementThreshold,
		Comparison:           ComparePrevious,
	}
}

// Validate checks the configuration for errors.
func (c AlertConfig) Validate() error {
	if c.AlertThreshold < 0 || c.AlertThreshold > 1 {
		return fmt.Errorf("alert threshold must be within [0, 1], got %v", c.AlertThreshold)
	}

	if c.ImprovementThreshold < 0 {
		return fmt.Errorf("improvement threshold must not be negative, got %v", c.ImprovementThreshold)
	}

	switch c.Comparison {
	case "", ComparePrevious, CompareMean:
	default:
		return fmt.Errorf("unknown comparison %q", c.Comparison)
	}

	return nil
}

// Alert flags a benchmark whose value deviates from its baseline beyond the
// configured threshold. Ratio is oriented so that values below 1 are worse,
// regardless of the tool's direction. Indeterminate alerts carry a zero
// Ratio.
type Alert struct {
	Kind           AlertKind `json:"kind"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	Ratio          float64   `json:"ratio"`
	Baseline       float64   `json:"baseline"`
	Current        float64   `json:"current"`
	PreviousCommit string    `json:"previous_commit,omitempty"`
}

// priorSample is a prior value of a benchmark and the commit it came from.
type priorSample struct {
	value    float64
	commitID string
}

// evaluate compares current against the window of prior samples. It
// returns nil when no alert should fire.
func (c AlertConfig) evaluate(tool Tool, current BenchResult, window []priorSample) *Alert {
	if len(window) == 0 {
		return nil
	}

	if c.Range > 0 && len(window) > c.Range {
		window = window[len(window)-c.Range:]
	}

	last := window[len(window)-1]
	baseline := last.value

	if c.Comparison == CompareMean {
		var sum float64
		for _, s := range window {
			sum += s.value
		}

		baseline = sum / float64(len(window))
	}

	alert := &Alert{
		Name:           current.Name,
		Unit:           current.Unit,
		Baseline:       baseline,
		Current:        current.Value,
		PreviousCommit: last.commitID,
	}

	num, den := baseline, current.Value
	if tool.BiggerIsBetter() {
		num, den = current.Value, baseline
	}

	if baseline == 0 || den == 0 {
		alert.Kind = AlertIndeterminate

		return alert
	}

	alert.Ratio = num / den

	switch {
	case alert.Ratio < 1-c.AlertThreshold:
		alert.Kind = AlertRegression
	case c.AlertOnImprovement && alert.Ratio > 1+c.ImprovementThreshold:
		alert.Kind = AlertImprovement
	default:
		return nil
	}

	return alert
}

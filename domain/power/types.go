package power

import (
	"fmt"
	"math/rand/v2"
)

// ============================================================================
// PLUG-IN CONTRACTS
// ============================================================================

// Generator produces one dataset of sampleSize units distributed under the
// alternative hypothesis. All randomness must come from rng for trials to be
// reproducible.
type Generator[D any] func(sampleSize int, rng *rand.Rand) (D, error)

// PValueFunc computes the p-value of a test on one generated dataset.
type PValueFunc[D any] func(data D) (float64, error)

// ============================================================================
// RESULTS
// ============================================================================

// Estimate is an empirical rejection rate in [0, 1].
type Estimate float64

// Float64 returns the estimate as a plain float.
func (e Estimate) Float64() float64 {
	return float64(e)
}

// Meets reports whether the estimate reaches threshold (inclusive).
func (e Estimate) Meets(threshold float64) bool {
	return float64(e) >= threshold
}

// Evaluation records one distinct estimator call made during a search.
type Evaluation struct {
	SampleSize int      `json:"sample_size"`
	Power      Estimate `json:"power"`
}

// WarningCode categorizes non-fatal search diagnostics
type WarningCode string

const (
	// WarningThresholdUnreachable means the upper bound of the search range
	// does not attain the requested power.
	WarningThresholdUnreachable WarningCode = "THRESHOLD_UNREACHABLE"
)

// Warning is a non-fatal diagnostic attached to a search result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

// SearchResult is the outcome of a minimum sample size search.
// INVARIANTS:
// - SampleSize lies in the searched range
// - Trace holds each evaluated size exactly once, in evaluation order
type SearchResult struct {
	Power      Estimate     `json:"power"`
	SampleSize int          `json:"sample_size"`
	Warnings   []Warning    `json:"warnings,omitempty"`
	Trace      []Evaluation `json:"trace"`
}

// HasWarning reports whether the result carries a warning with the given code.
func (r *SearchResult) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// ThresholdReached is false when the search fell back to the upper bound.
func (r *SearchResult) ThresholdReached() bool {
	return !r.HasWarning(WarningThresholdUnreachable)
}

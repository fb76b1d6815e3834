// Package scenarios provides ready-made data generators and p-value functions
// for common power analyses: two-sample and paired t-tests and the Wilcoxon
// signed-rank test. They plug into app.EstimatePower and app.FindMinSampleSize.
package scenarios

import (
	"errors"
)

var (
	// ErrInsufficientSamples indicates a dataset too small for the test.
	ErrInsufficientSamples = errors.New("insufficient samples for statistical test")

	// ErrZeroVariance indicates the test statistic is undefined.
	ErrZeroVariance = errors.New("sample set has zero variance")

	// ErrLengthMismatch indicates paired columns of different lengths.
	ErrLengthMismatch = errors.New("paired samples differ in length")

	// ErrInvalidParameter indicates a scenario parameter out of range.
	ErrInvalidParameter = errors.New("invalid scenario parameter")
)

// TwoSample holds two independent groups; sample size counts units per group.
type TwoSample struct {
	Control   []float64
	Treatment []float64
}

// Paired holds matched before/after measurements; sample size counts pairs.
type Paired struct {
	Before []float64
	After  []float64
}

// Differences returns After - Before for each pair.
func (p Paired) Differences() ([]float64, error) {
	if len(p.Before) != len(p.After) {
		return nil, ErrLengthMismatch
	}
	diffs := make([]float64, len(p.Before))
	for i := range p.Before {
		diffs[i] = p.After[i] - p.Before[i]
	}
	return diffs, nil
}

// clampP keeps floating-point round-off from leaving [0, 1].
func clampP(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

package testkit

import (
	"context"
	"math/rand/v2"
	"sync"

	"gopower/app"
	"gopower/domain/power"
	"gopower/internal"
)

// Dataset is the opaque dataset type used by rigged plug-ins.
type Dataset struct {
	SampleSize int
	Draw       float64
}

// UniformGenerator returns a generator whose dataset holds a single uniform
// draw from the trial stream.
func UniformGenerator() power.Generator[Dataset] {
	return func(sampleSize int, rng *rand.Rand) (Dataset, error) {
		return Dataset{SampleSize: sampleSize, Draw: rng.Float64()}, nil
	}
}

// DrawPValue uses the generated uniform draw as the p-value, so power equals
// alpha in expectation.
func DrawPValue() power.PValueFunc[Dataset] {
	return func(data Dataset) (float64, error) {
		return data.Draw, nil
	}
}

// ConstantPValue ignores the dataset and always returns p.
func ConstantPValue[D any](p float64) power.PValueFunc[D] {
	return func(D) (float64, error) {
		return p, nil
	}
}

// ConstantEstimator reports the same power for every sample size.
func ConstantEstimator[D any](p float64) app.Estimator[D] {
	return func(context.Context, int, power.Generator[D], power.PValueFunc[D], app.EstimateOptions) (power.Estimate, error) {
		return power.Estimate(p), nil
	}
}

// StepEstimator reports below for sizes under cut and above from cut on.
func StepEstimator[D any](cut int, below, above float64) app.Estimator[D] {
	return func(_ context.Context, sampleSize int, _ power.Generator[D], _ power.PValueFunc[D], _ app.EstimateOptions) (power.Estimate, error) {
		if sampleSize < cut {
			return power.Estimate(below), nil
		}
		return power.Estimate(above), nil
	}
}

// CountingEstimator wraps an estimator and records how often each sample
// size was requested.
type CountingEstimator[D any] struct {
	inner app.Estimator[D]

	mu    sync.Mutex
	calls map[int]int
	order []int
}

// NewCountingEstimator instruments inner.
func NewCountingEstimator[D any](inner app.Estimator[D]) *CountingEstimator[D] {
	return &CountingEstimator[D]{
		inner: inner,
		calls: make(map[int]int),
	}
}

// Estimate satisfies app.Estimator.
func (c *CountingEstimator[D]) Estimate(ctx context.Context, sampleSize int, generate power.Generator[D], pValue power.PValueFunc[D], opts app.EstimateOptions) (power.Estimate, error) {
	c.mu.Lock()
	c.calls[sampleSize]++
	c.order = append(c.order, sampleSize)
	c.mu.Unlock()
	return c.inner(ctx, sampleSize, generate, pValue, opts)
}

// Total returns the number of estimator calls.
func (c *CountingEstimator[D]) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Calls returns how often sampleSize was estimated.
func (c *CountingEstimator[D]) Calls(sampleSize int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[sampleSize]
}

// MaxRepeats returns the highest call count of any single size.
func (c *CountingEstimator[D]) MaxRepeats() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	highest := 0
	for _, n := range c.calls {
		if n > highest {
			highest = n
		}
	}
	return highest
}

// Order returns the requested sizes in call order.
func (c *CountingEstimator[D]) Order() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.order))
	copy(out, c.order)
	return out
}

// QuietLogger discards search log output in tests.
func QuietLogger() *internal.Logger {
	return internal.NewDiscardLogger()
}

package app

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"gopower/domain/power"
	"gopower/internal/errors"

	"golang.org/x/sync/semaphore"
)

// Defaults shared by estimation and search.
const (
	DefaultNTrials        = 1000
	DefaultAlpha          = 0.05
	DefaultPowerThreshold = 0.80
)

// EstimateOptions configures a Monte Carlo power estimate
type EstimateOptions struct {
	NTrials int     // independent replications, > 0
	Alpha   float64 // significance level, in (0, 1)
	Workers int     // concurrent trials; 0 or 1 runs serially
}

// DefaultEstimateOptions returns 1000 serial trials at alpha 0.05.
func DefaultEstimateOptions() EstimateOptions {
	return EstimateOptions{
		NTrials: DefaultNTrials,
		Alpha:   DefaultAlpha,
		Workers: 1,
	}
}

func (o EstimateOptions) validate() error {
	if o.NTrials <= 0 {
		return errors.InvalidArgument("n_trials must be positive, got %d", o.NTrials)
	}
	if math.IsNaN(o.Alpha) || o.Alpha <= 0 || o.Alpha >= 1 {
		return errors.InvalidArgument("alpha must lie in (0,1), got %v", o.Alpha)
	}
	if o.Workers < 0 {
		return errors.InvalidArgument("workers must not be negative, got %d", o.Workers)
	}
	return nil
}

// Estimator computes power at one sample size. EstimatePower satisfies it;
// tests substitute rigged implementations.
type Estimator[D any] func(ctx context.Context, sampleSize int, generate power.Generator[D], pValue power.PValueFunc[D], opts EstimateOptions) (power.Estimate, error)

// EstimatePower runs opts.NTrials simulated trials at sampleSize and returns
// the fraction whose p-value is strictly below opts.Alpha.
//
// Trial i (1-based) draws from power.TrialRand(i), so the result is
// bit-for-bit reproducible and independent of opts.Workers. A plug-in error
// aborts the run and is returned as a CollaboratorFailure; when trials run
// concurrently the failure of the lowest trial index wins, as it would serially.
func EstimatePower[D any](ctx context.Context, sampleSize int, generate power.Generator[D], pValue power.PValueFunc[D], opts EstimateOptions) (power.Estimate, error) {
	if err := validateEstimateArgs(sampleSize, generate, pValue, opts); err != nil {
		return 0, err
	}

	var rejections int
	var err error
	if opts.Workers > 1 {
		rejections, err = runTrialsConcurrent(ctx, sampleSize, generate, pValue, opts)
	} else {
		rejections, err = runTrialsSerial(ctx, sampleSize, generate, pValue, opts)
	}
	if err != nil {
		return 0, err
	}

	return power.Estimate(float64(rejections) / float64(opts.NTrials)), nil
}

func validateEstimateArgs[D any](sampleSize int, generate power.Generator[D], pValue power.PValueFunc[D], opts EstimateOptions) error {
	if sampleSize <= 0 {
		return errors.InvalidArgument("sample_size must be positive, got %d", sampleSize)
	}
	if generate == nil {
		return errors.InvalidArgument("data generator is required")
	}
	if pValue == nil {
		return errors.InvalidArgument("p-value function is required")
	}
	return opts.validate()
}

// runTrial executes one replication and reports whether the test rejected.
func runTrial[D any](sampleSize, trial int, generate power.Generator[D], pValue power.PValueFunc[D], alpha float64) (bool, error) {
	data, err := generate(sampleSize, power.TrialRand(trial))
	if err != nil {
		return false, errors.CollaboratorFailure(err, "data generator failed on trial %d (sample_size=%d)", trial, sampleSize)
	}
	p, err := pValue(data)
	if err != nil {
		return false, errors.CollaboratorFailure(err, "p-value function failed on trial %d (sample_size=%d)", trial, sampleSize)
	}
	// NaN never rejects.
	return p < alpha, nil
}

func runTrialsSerial[D any](ctx context.Context, sampleSize int, generate power.Generator[D], pValue power.PValueFunc[D], opts EstimateOptions) (int, error) {
	rejections := 0
	for trial := 1; trial <= opts.NTrials; trial++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rejected, err := runTrial(sampleSize, trial, generate, pValue, opts.Alpha)
		if err != nil {
			return 0, err
		}
		if rejected {
			rejections++
		}
	}
	return rejections, nil
}

// runTrialsConcurrent dispatches trials in index order through a weighted
// semaphore. Dispatch stops at the first observed failure; every lower trial
// has already been dispatched by then, so the lowest failing index is final
// once all workers return.
func runTrialsConcurrent[D any](ctx context.Context, sampleSize int, generate power.Generator[D], pValue power.PValueFunc[D], opts EstimateOptions) (int, error) {
	sem := semaphore.NewWeighted(int64(opts.Workers))

	var (
		wg          sync.WaitGroup
		rejections  atomic.Int64
		firstFailed atomic.Int64 // lowest failing trial index, 0 when none
		failures    = make([]error, opts.NTrials+1)
		dispatchErr error
	)

	for trial := 1; trial <= opts.NTrials; trial++ {
		if firstFailed.Load() != 0 {
			break
		}
		// Acquire may succeed on a context that is already done.
		if err := ctx.Err(); err != nil {
			dispatchErr = err
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			dispatchErr = err
			break
		}

		wg.Add(1)
		go func(trial int) {
			defer wg.Done()
			defer sem.Release(1)

			rejected, err := runTrial(sampleSize, trial, generate, pValue, opts.Alpha)
			if err != nil {
				failures[trial] = err
				recordFailure(&firstFailed, int64(trial))
				return
			}
			if rejected {
				rejections.Add(1)
			}
		}(trial)
	}
	wg.Wait()

	if failed := firstFailed.Load(); failed != 0 {
		return 0, failures[failed]
	}
	if dispatchErr != nil {
		return 0, dispatchErr
	}
	return int(rejections.Load()), nil
}

// recordFailure lowers firstFailed to trial unless a lower index already failed.
func recordFailure(firstFailed *atomic.Int64, trial int64) {
	for {
		current := firstFailed.Load()
		if current != 0 && current <= trial {
			return
		}
		if firstFailed.CompareAndSwap(current, trial) {
			return
		}
	}
}

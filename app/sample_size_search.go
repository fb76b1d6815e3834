package app

import (
	"context"
	"fmt"
	"math"

	"gopower/domain/power"
	"gopower/internal"
	"gopower/internal/errors"

	"github.com/google/uuid"
)

// SearchObserver receives every power lookup a search performs. Implementations
// must be safe for concurrent use when shared between searches.
type SearchObserver interface {
	// ObserveEvaluation is called once per lookup; cached is true on a cache hit.
	ObserveEvaluation(sampleSize int, p power.Estimate, cached bool)
	// ObserveResult is called once when a search completes successfully.
	ObserveResult(result *power.SearchResult)
}

// SearchConfig holds the inputs of a minimum sample size search
type SearchConfig struct {
	SizeMin        int
	SizeMax        int
	PowerThreshold float64
	Estimate       EstimateOptions

	Observer SearchObserver   // optional
	Logger   *internal.Logger // defaults to internal.DefaultLogger
}

// DefaultSearchConfig returns a config for [sizeMin, sizeMax] with power
// threshold 0.80 and default estimate options.
func DefaultSearchConfig(sizeMin, sizeMax int) SearchConfig {
	return SearchConfig{
		SizeMin:        sizeMin,
		SizeMax:        sizeMax,
		PowerThreshold: DefaultPowerThreshold,
		Estimate:       DefaultEstimateOptions(),
	}
}

func (c SearchConfig) validate() error {
	if c.SizeMin <= 0 {
		return errors.InvalidArgument("size_min must be positive, got %d", c.SizeMin)
	}
	if c.SizeMax < c.SizeMin {
		return errors.InvalidArgument("size_max (%d) must be >= size_min (%d)", c.SizeMax, c.SizeMin)
	}
	if math.IsNaN(c.PowerThreshold) || c.PowerThreshold <= 0 || c.PowerThreshold >= 1 {
		return errors.InvalidArgument("power_threshold must lie in (0,1), got %v", c.PowerThreshold)
	}
	return c.Estimate.validate()
}

// SearchOption customizes a search.
type SearchOption[D any] func(*sampleSizeSearch[D])

// WithEstimator replaces EstimatePower, e.g. with a rigged or instrumented estimator.
func WithEstimator[D any](estimator Estimator[D]) SearchOption[D] {
	return func(s *sampleSizeSearch[D]) {
		s.estimator = estimator
	}
}

// sampleSizeSearch carries the state of one FindMinSampleSize invocation.
type sampleSizeSearch[D any] struct {
	runID     string
	cfg       SearchConfig
	generate  power.Generator[D]
	pValue    power.PValueFunc[D]
	estimator Estimator[D]
	cache     *SampleSizeCache
	trace     []power.Evaluation
	logger    *internal.Logger
}

// FindMinSampleSize returns the smallest size in [cfg.SizeMin, cfg.SizeMax]
// whose estimated power meets cfg.PowerThreshold.
//
// The size at the lower bound is returned as soon as it meets the threshold.
// If the upper bound misses it, the result carries a ThresholdUnreachable
// warning with the power and size at the upper bound; that is not an error.
// Otherwise an integer bisection narrows the crossing point. Each distinct
// size is estimated exactly once.
//
// The bisection assumes power is non-decreasing in sample size. Estimates
// are noisy, so on a flat curve near the threshold it can settle on a size a
// little off the true crossing point; the comparisons are trusted as made.
func FindMinSampleSize[D any](ctx context.Context, generate power.Generator[D], pValue power.PValueFunc[D], cfg SearchConfig, opts ...SearchOption[D]) (*power.SearchResult, error) {
	s := &sampleSizeSearch[D]{
		runID:     uuid.NewString(),
		cfg:       cfg,
		generate:  generate,
		pValue:    pValue,
		estimator: EstimatePower[D],
		cache:     NewSampleSizeCache(),
		logger:    cfg.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = internal.DefaultLogger
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	result, err := s.run(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Observer != nil {
		cfg.Observer.ObserveResult(result)
	}
	return result, nil
}

func (s *sampleSizeSearch[D]) validate() error {
	if s.generate == nil {
		return errors.InvalidArgument("data generator is required")
	}
	if s.pValue == nil {
		return errors.InvalidArgument("p-value function is required")
	}
	if s.estimator == nil {
		return errors.InvalidArgument("estimator is required")
	}
	return s.cfg.validate()
}

func (s *sampleSizeSearch[D]) run(ctx context.Context) (*power.SearchResult, error) {
	threshold := s.cfg.PowerThreshold

	lowPower, err := s.powerAt(ctx, s.cfg.SizeMin)
	if err != nil {
		return nil, err
	}
	if lowPower.Meets(threshold) {
		return s.result(lowPower, s.cfg.SizeMin), nil
	}

	highPower, err := s.powerAt(ctx, s.cfg.SizeMax)
	if err != nil {
		return nil, err
	}
	if !highPower.Meets(threshold) {
		warning := power.Warning{
			Code: power.WarningThresholdUnreachable,
			Message: fmt.Sprintf("power %.4f at size_max %d is below threshold %.4f",
				highPower.Float64(), s.cfg.SizeMax, threshold),
		}
		s.logger.Warn("[SampleSizeSearch] run=%s %s", s.runID, warning)
		result := s.result(highPower, s.cfg.SizeMax)
		result.Warnings = append(result.Warnings, warning)
		return result, nil
	}

	low, high := s.cfg.SizeMin, s.cfg.SizeMax
	for low < high {
		mid := low + (high-low)/2
		midPower, err := s.powerAt(ctx, mid)
		if err != nil {
			return nil, err
		}
		if midPower.Meets(threshold) {
			high = mid
		} else {
			low = mid + 1
		}
	}

	finalPower, err := s.powerAt(ctx, low)
	if err != nil {
		return nil, err
	}
	return s.result(finalPower, low), nil
}

// powerAt looks sampleSize up in the cache and estimates it on a miss.
func (s *sampleSizeSearch[D]) powerAt(ctx context.Context, sampleSize int) (power.Estimate, error) {
	if p, ok := s.cache.Get(sampleSize); ok {
		s.observe(sampleSize, p, true)
		return p, nil
	}

	p, err := s.estimator(ctx, sampleSize, s.generate, s.pValue, s.cfg.Estimate)
	if err != nil {
		return 0, err
	}
	s.cache.Put(sampleSize, p)
	s.logger.Debug("[SampleSizeSearch] run=%s size=%d power=%.4f", s.runID, sampleSize, p.Float64())
	s.trace = append(s.trace, power.Evaluation{SampleSize: sampleSize, Power: p})
	s.observe(sampleSize, p, false)
	return p, nil
}

func (s *sampleSizeSearch[D]) observe(sampleSize int, p power.Estimate, cached bool) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveEvaluation(sampleSize, p, cached)
	}
}

func (s *sampleSizeSearch[D]) result(p power.Estimate, sampleSize int) *power.SearchResult {
	stats := s.cache.Stats()
	s.logger.Info("[SampleSizeSearch] run=%s done: size=%d power=%.4f evaluations=%d cache_hits=%d",
		s.runID, sampleSize, p.Float64(), stats.Entries, stats.Hits)

	trace := make([]power.Evaluation, len(s.trace))
	copy(trace, s.trace)
	return &power.SearchResult{
		Power:      p,
		SampleSize: sampleSize,
		Trace:      trace,
	}
}

package app_test

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"testing"

	"gopower/adapters/stats/scenarios"
	"gopower/app"
	"gopower/domain/power"
	"gopower/internal"
	"gopower/internal/errors"
	"gopower/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type D = testkit.Dataset

func searchConfig(sizeMin, sizeMax int, threshold float64) app.SearchConfig {
	cfg := app.DefaultSearchConfig(sizeMin, sizeMax)
	cfg.PowerThreshold = threshold
	cfg.Logger = testkit.QuietLogger()
	return cfg
}

func runRigged(t *testing.T, estimator app.Estimator[D], cfg app.SearchConfig) (*power.SearchResult, *testkit.CountingEstimator[D]) {
	t.Helper()
	counter := testkit.NewCountingEstimator[D](estimator)
	result, err := app.FindMinSampleSize(context.Background(), testkit.UniformGenerator(), testkit.DrawPValue(), cfg,
		app.WithEstimator[D](counter.Estimate))
	require.NoError(t, err)
	return result, counter
}

func TestFindMinSampleSize_LowerBoundFastPath(t *testing.T) {
	result, counter := runRigged(t, testkit.ConstantEstimator[D](0.9), searchConfig(10, 100, 0.8))

	assert.Equal(t, power.Estimate(0.9), result.Power)
	assert.Equal(t, 10, result.SampleSize)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, []int{10}, counter.Order(), "no bisection calls")
}

func TestFindMinSampleSize_UnreachableThreshold(t *testing.T) {
	result, counter := runRigged(t, testkit.ConstantEstimator[D](0.1), searchConfig(10, 100, 0.8))

	assert.Equal(t, power.Estimate(0.1), result.Power)
	assert.Equal(t, 100, result.SampleSize)
	assert.True(t, result.HasWarning(power.WarningThresholdUnreachable))
	assert.False(t, result.ThresholdReached())
	assert.Equal(t, []int{10, 100}, counter.Order(), "no bisection calls")
}

func TestFindMinSampleSize_LogsUnreachableWarning(t *testing.T) {
	var buf bytes.Buffer
	cfg := searchConfig(10, 100, 0.8)
	cfg.Logger = internal.NewLogger(internal.LogLevelWarn, &buf)

	runRigged(t, testkit.ConstantEstimator[D](0.1), cfg)

	assert.Contains(t, buf.String(), "[WARN] [SampleSizeSearch]")
	assert.Contains(t, buf.String(), "THRESHOLD_UNREACHABLE: power 0.1000 at size_max 100 is below threshold 0.8000")
	assert.NotContains(t, buf.String(), "done:", "info lines are filtered at WARN")
}

func TestFindMinSampleSize_StepFunction(t *testing.T) {
	result, counter := runRigged(t, testkit.StepEstimator[D](30, 0.1, 0.95), searchConfig(4, 200, 0.8))

	assert.Equal(t, power.Estimate(0.95), result.Power)
	assert.Equal(t, 30, result.SampleSize)
	assert.True(t, result.ThresholdReached())
	assert.Equal(t, 1, counter.MaxRepeats())
}

func TestFindMinSampleSize_CacheBoundsEvaluations(t *testing.T) {
	const sizeMin, sizeMax = 4, 64
	limit := 2 + int(math.Ceil(math.Log2(float64(sizeMax-sizeMin))))

	for cut := sizeMin + 1; cut <= sizeMax; cut++ {
		t.Run(fmt.Sprintf("crossing at %d", cut), func(t *testing.T) {
			result, counter := runRigged(t, testkit.StepEstimator[D](cut, 0.2, 0.9), searchConfig(sizeMin, sizeMax, 0.8))

			assert.Equal(t, cut, result.SampleSize)
			assert.LessOrEqual(t, counter.Total(), limit)
			assert.Equal(t, 1, counter.MaxRepeats(), "a sample size was estimated twice")

			require.Len(t, result.Trace, counter.Total())
			for i, size := range counter.Order() {
				assert.Equal(t, size, result.Trace[i].SampleSize)
			}
		})
	}
}

func TestFindMinSampleSize_SingletonRange(t *testing.T) {
	result, counter := runRigged(t, testkit.ConstantEstimator[D](0.5), searchConfig(12, 12, 0.8))

	assert.Equal(t, 12, result.SampleSize)
	assert.True(t, result.HasWarning(power.WarningThresholdUnreachable))
	assert.Equal(t, 1, counter.Total(), "upper bound is a cache hit")
}

func TestFindMinSampleSize_NonMonotoneEstimatesTrusted(t *testing.T) {
	// A dip at the first midpoint hides the earlier crossing at 16: the
	// search trusts the comparisons it makes and settles on 26.
	noisy := func(_ context.Context, n int, _ power.Generator[D], _ power.PValueFunc[D], _ app.EstimateOptions) (power.Estimate, error) {
		switch {
		case n < 16:
			return 0.5, nil
		case n == 25:
			return 0.79, nil
		default:
			return 0.85, nil
		}
	}
	result, counter := runRigged(t, noisy, searchConfig(10, 40, 0.8))
	assert.Equal(t, 26, result.SampleSize)
	assert.Equal(t, []int{10, 40, 25, 33, 29, 27, 26}, counter.Order())
}

func TestFindMinSampleSize_InvalidArguments(t *testing.T) {
	valid := searchConfig(4, 64, 0.8)

	tests := []struct {
		name   string
		mutate func(cfg *app.SearchConfig)
	}{
		{name: "zero size_min", mutate: func(cfg *app.SearchConfig) { cfg.SizeMin = 0 }},
		{name: "size_max below size_min", mutate: func(cfg *app.SearchConfig) { cfg.SizeMax = 3 }},
		{name: "threshold zero", mutate: func(cfg *app.SearchConfig) { cfg.PowerThreshold = 0 }},
		{name: "threshold one", mutate: func(cfg *app.SearchConfig) { cfg.PowerThreshold = 1 }},
		{name: "zero trials", mutate: func(cfg *app.SearchConfig) { cfg.Estimate.NTrials = 0 }},
		{name: "alpha out of range", mutate: func(cfg *app.SearchConfig) { cfg.Estimate.Alpha = 1.2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			counter := testkit.NewCountingEstimator[D](testkit.ConstantEstimator[D](0.9))

			_, err := app.FindMinSampleSize(context.Background(), testkit.UniformGenerator(), testkit.DrawPValue(), cfg,
				app.WithEstimator[D](counter.Estimate))
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err), "got %v", err)
			assert.Zero(t, counter.Total())
		})
	}

	t.Run("nil generator", func(t *testing.T) {
		_, err := app.FindMinSampleSize[D](context.Background(), nil, testkit.DrawPValue(), valid)
		assert.True(t, errors.IsInvalidArgument(err))
	})
	t.Run("nil estimator", func(t *testing.T) {
		_, err := app.FindMinSampleSize(context.Background(), testkit.UniformGenerator(), testkit.DrawPValue(), valid,
			app.WithEstimator[D](nil))
		assert.True(t, errors.IsInvalidArgument(err))
	})
}

func TestFindMinSampleSize_EstimatorErrorPropagates(t *testing.T) {
	failing := func(_ context.Context, n int, _ power.Generator[D], _ power.PValueFunc[D], _ app.EstimateOptions) (power.Estimate, error) {
		if n == 64 {
			return 0, errors.CollaboratorFailure(errBoom, "data generator failed on trial 1 (sample_size=%d)", n)
		}
		return 0.1, nil
	}

	_, err := app.FindMinSampleSize(context.Background(), testkit.UniformGenerator(), testkit.DrawPValue(), searchConfig(4, 64, 0.8),
		app.WithEstimator[D](failing))
	require.Error(t, err)
	assert.True(t, errors.IsCollaboratorFailure(err))
	assert.ErrorIs(t, err, errBoom)
}

type recordingObserver struct {
	hits    []int
	misses  []int
	results []*power.SearchResult
}

func (o *recordingObserver) ObserveEvaluation(sampleSize int, _ power.Estimate, cached bool) {
	if cached {
		o.hits = append(o.hits, sampleSize)
		return
	}
	o.misses = append(o.misses, sampleSize)
}

func (o *recordingObserver) ObserveResult(result *power.SearchResult) {
	o.results = append(o.results, result)
}

func TestFindMinSampleSize_Observer(t *testing.T) {
	observer := &recordingObserver{}
	cfg := searchConfig(4, 200, 0.8)
	cfg.Observer = observer

	result, counter := runRigged(t, testkit.StepEstimator[D](30, 0.1, 0.95), cfg)

	assert.Equal(t, counter.Order(), observer.misses)
	require.NotEmpty(t, observer.hits)
	assert.Equal(t, 30, observer.hits[len(observer.hits)-1], "final lookup is served from the cache")
	require.Len(t, observer.results, 1)
	assert.Same(t, result, observer.results[0])
}

func TestFindMinSampleSize_EndToEndTwoSampleTTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Monte Carlo search")
	}

	cfg := searchConfig(5, 100, 0.8)
	cfg.Estimate = app.EstimateOptions{NTrials: 2000, Alpha: 0.05, Workers: 4}

	result, err := app.FindMinSampleSize(context.Background(), scenarios.NormalShift(0.8), scenarios.StudentTTest, cfg)
	require.NoError(t, err)

	// Analytic crossing is 26 per group.
	assert.True(t, result.ThresholdReached())
	assert.GreaterOrEqual(t, result.Power.Float64(), 0.8)
	assert.InDelta(t, 26, result.SampleSize, 4)

	seen := make(map[int]bool)
	for _, ev := range result.Trace {
		assert.False(t, seen[ev.SampleSize], "size %d evaluated twice", ev.SampleSize)
		seen[ev.SampleSize] = true
	}
}

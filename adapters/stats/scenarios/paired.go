package scenarios

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gopower/domain/power"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// CorrelatedPairs generates standard normal before/after pairs with the given
// within-pair correlation and a mean shift of effect on the after column.
func CorrelatedPairs(effect, correlation float64) (power.Generator[Paired], error) {
	if math.IsNaN(correlation) || correlation <= -1 || correlation >= 1 {
		return nil, fmt.Errorf("%w: correlation must lie in (-1,1), got %v", ErrInvalidParameter, correlation)
	}
	residual := math.Sqrt(1 - correlation*correlation)

	return func(sampleSize int, rng *rand.Rand) (Paired, error) {
		unit := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

		data := Paired{
			Before: make([]float64, sampleSize),
			After:  make([]float64, sampleSize),
		}
		for i := 0; i < sampleSize; i++ {
			z1 := unit.Rand()
			z2 := unit.Rand()
			data.Before[i] = z1
			data.After[i] = effect + correlation*z1 + residual*z2
		}
		return data, nil
	}, nil
}

// LaplacePairs generates pairs whose differences follow a Laplace
// distribution centred on shift, a heavy-tailed case where the Wilcoxon
// signed-rank test outpowers the paired t-test.
func LaplacePairs(shift, scale float64) (power.Generator[Paired], error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: scale must be positive and finite, got %v", ErrInvalidParameter, scale)
	}

	return func(sampleSize int, rng *rand.Rand) (Paired, error) {
		baseline := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
		noise := distuv.Laplace{Mu: shift, Scale: scale, Src: rng}

		data := Paired{
			Before: make([]float64, sampleSize),
			After:  make([]float64, sampleSize),
		}
		for i := 0; i < sampleSize; i++ {
			data.Before[i] = baseline.Rand()
			data.After[i] = data.Before[i] + noise.Rand()
		}
		return data, nil
	}, nil
}

// PairedTTest is the two-sided one-sample t-test on the pair differences.
func PairedTTest(data Paired) (float64, error) {
	diffs, err := data.Differences()
	if err != nil {
		return 0, err
	}
	if len(diffs) < 2 {
		return 0, ErrInsufficientSamples
	}

	mean, err := stats.Mean(diffs)
	if err != nil {
		return 0, err
	}
	sd, err := stats.StandardDeviationSample(diffs)
	if err != nil {
		return 0, err
	}

	n := float64(len(diffs))
	se := sd / math.Sqrt(n)
	if se == 0 {
		return 0, ErrZeroVariance
	}

	return twoSidedT(mean/se, n-1), nil
}

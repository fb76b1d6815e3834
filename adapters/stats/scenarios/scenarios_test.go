package scenarios

import (
	"math"
	"testing"

	"gopower/domain/power"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestStudentTTest_KnownValue(t *testing.T) {
	data := TwoSample{
		Control:   []float64{1, 2, 3, 4, 5},
		Treatment: []float64{2, 3, 4, 5, 6},
	}

	// t = 1, df = 8
	p, err := StudentTTest(data)
	require.NoError(t, err)
	assert.InDelta(t, 0.3466, p, 1e-4)

	// Equal sizes and variances: Welch reduces to Student.
	pw, err := WelchTTest(data)
	require.NoError(t, err)
	assert.InDelta(t, p, pw, 1e-12)
}

func TestTwoSampleTests_Errors(t *testing.T) {
	_, err := StudentTTest(TwoSample{Control: []float64{1}, Treatment: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrInsufficientSamples)

	_, err = WelchTTest(TwoSample{Control: []float64{3, 3, 3}, Treatment: []float64{3, 3, 3}})
	assert.ErrorIs(t, err, ErrZeroVariance)
}

func TestPairedTTest_KnownValue(t *testing.T) {
	data := Paired{
		Before: []float64{1, 2, 3, 4, 5},
		After:  []float64{2, 4, 3, 6, 7},
	}

	// differences {1,2,0,2,2}: mean 1.4, se 0.4, t = 3.5, df = 4
	p, err := PairedTTest(data)
	require.NoError(t, err)
	assert.InDelta(t, 0.0249, p, 5e-4)
}

func TestPairedTTest_LengthMismatch(t *testing.T) {
	_, err := PairedTTest(Paired{Before: []float64{1, 2}, After: []float64{1}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestWilcoxonSignedRank(t *testing.T) {
	tests := []struct {
		name  string
		diffs []float64
		want  float64
	}{
		{name: "five positive differences exact", diffs: []float64{1, 2, 3, 4, 5}, want: 2.0 / 32},
		{name: "six positive differences exact", diffs: []float64{0.5, 1.5, 2.5, 3.5, 4.5, 5.5}, want: 2.0 / 64},
		{name: "all zero differences", diffs: []float64{0, 0, 0}, want: 1.0},
		{name: "symmetric ties use normal approximation", diffs: []float64{1, -1, 2, -2}, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := make([]float64, len(tt.diffs))
			p, err := WilcoxonSignedRank(Paired{Before: before, After: tt.diffs})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, p, 1e-12)
		})
	}
}

func TestWilcoxonSignedRank_ExactMatchesNormalForLargeN(t *testing.T) {
	// Between the exact and approximate regimes the two must roughly agree.
	diffs := make([]float64, 40)
	for i := range diffs {
		diffs[i] = float64(i + 1)
		if i%3 == 0 {
			diffs[i] = -diffs[i]
		}
	}
	ranks, ties := signedRankAbs(diffs)
	require.Empty(t, ties)

	wPlus := 0.0
	for i, d := range diffs {
		if d > 0 {
			wPlus += ranks[i]
		}
	}
	exact := exactSignedRankPValue(wPlus, len(diffs))
	approx := normalSignedRankPValue(wPlus, len(diffs), nil)
	assert.InDelta(t, exact, approx, 0.01)
}

func TestSignedRankAbs_AverageRanks(t *testing.T) {
	ranks, ties := signedRankAbs([]float64{-3, 1, 1, 2})
	assert.Equal(t, []float64{4, 1.5, 1.5, 3}, ranks)
	assert.Equal(t, []int{2}, ties)
}

func TestNormalShift_ReproducibleAndShifted(t *testing.T) {
	gen := NormalShift(0.5)

	a, err := gen(2000, power.TrialRand(3))
	require.NoError(t, err)
	b, err := gen(2000, power.TrialRand(3))
	require.NoError(t, err)

	assert.Len(t, a.Control, 2000)
	assert.Len(t, a.Treatment, 2000)
	assert.Equal(t, a, b, "same trial stream must reproduce the dataset")

	diff := stat.Mean(a.Treatment, nil) - stat.Mean(a.Control, nil)
	assert.InDelta(t, 0.5, diff, 0.15)
}

func TestCorrelatedPairs(t *testing.T) {
	_, err := CorrelatedPairs(0.3, 1)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	gen, err := CorrelatedPairs(0.3, 0.6)
	require.NoError(t, err)
	data, err := gen(5000, power.TrialRand(1))
	require.NoError(t, err)

	assert.InDelta(t, 0.6, stat.Correlation(data.Before, data.After, nil), 0.05)
	diffs, err := data.Differences()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, stat.Mean(diffs, nil), 0.05)
}

func TestLaplacePairs(t *testing.T) {
	_, err := LaplacePairs(0, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	gen, err := LaplacePairs(0.2, 1)
	require.NoError(t, err)
	data, err := gen(5000, power.TrialRand(9))
	require.NoError(t, err)

	diffs, err := data.Differences()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, stat.Mean(diffs, nil), 0.08)
	// Laplace variance is 2*scale^2.
	assert.InDelta(t, math.Sqrt2, stat.StdDev(diffs, nil), 0.1)
}

func TestUnequalVarianceShift(t *testing.T) {
	_, err := UnequalVarianceShift(0.5, -1)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	gen, err := UnequalVarianceShift(0.5, 2)
	require.NoError(t, err)
	data, err := gen(4000, power.TrialRand(2))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, stat.StdDev(data.Treatment, nil), 0.1)
}

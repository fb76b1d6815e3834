package scenarios

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gopower/domain/power"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormalShift generates two unit-variance normal groups whose means differ by
// effect standard deviations (Cohen's d).
func NormalShift(effect float64) power.Generator[TwoSample] {
	return func(sampleSize int, rng *rand.Rand) (TwoSample, error) {
		control := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
		treatment := distuv.Normal{Mu: effect, Sigma: 1, Src: rng}

		data := TwoSample{
			Control:   make([]float64, sampleSize),
			Treatment: make([]float64, sampleSize),
		}
		for i := 0; i < sampleSize; i++ {
			data.Control[i] = control.Rand()
		}
		for i := 0; i < sampleSize; i++ {
			data.Treatment[i] = treatment.Rand()
		}
		return data, nil
	}
}

// UnequalVarianceShift is NormalShift with the treatment group's standard
// deviation scaled by sigmaRatio; pair it with WelchTTest.
func UnequalVarianceShift(effect, sigmaRatio float64) (power.Generator[TwoSample], error) {
	if !(sigmaRatio > 0) || math.IsInf(sigmaRatio, 0) {
		return nil, fmt.Errorf("%w: sigma ratio must be positive and finite, got %v", ErrInvalidParameter, sigmaRatio)
	}
	return func(sampleSize int, rng *rand.Rand) (TwoSample, error) {
		control := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
		treatment := distuv.Normal{Mu: effect, Sigma: sigmaRatio, Src: rng}

		data := TwoSample{
			Control:   make([]float64, sampleSize),
			Treatment: make([]float64, sampleSize),
		}
		for i := 0; i < sampleSize; i++ {
			data.Control[i] = control.Rand()
		}
		for i := 0; i < sampleSize; i++ {
			data.Treatment[i] = treatment.Rand()
		}
		return data, nil
	}, nil
}

// StudentTTest is the two-sided pooled-variance two-sample t-test.
func StudentTTest(data TwoSample) (float64, error) {
	n1 := float64(len(data.Control))
	n2 := float64(len(data.Treatment))
	if n1 < 2 || n2 < 2 {
		return 0, ErrInsufficientSamples
	}

	mean1, var1 := stat.MeanVariance(data.Control, nil)
	mean2, var2 := stat.MeanVariance(data.Treatment, nil)

	df := n1 + n2 - 2
	pooled := ((n1-1)*var1 + (n2-1)*var2) / df
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 {
		return 0, ErrZeroVariance
	}

	tStat := (mean2 - mean1) / se
	return twoSidedT(tStat, df), nil
}

// WelchTTest is the two-sided two-sample t-test without the equal variance
// assumption, using Welch-Satterthwaite degrees of freedom.
func WelchTTest(data TwoSample) (float64, error) {
	n1 := float64(len(data.Control))
	n2 := float64(len(data.Treatment))
	if n1 < 2 || n2 < 2 {
		return 0, ErrInsufficientSamples
	}

	mean1, var1 := stat.MeanVariance(data.Control, nil)
	mean2, var2 := stat.MeanVariance(data.Treatment, nil)

	a := var1 / n1
	b := var2 / n2
	se := math.Sqrt(a + b)
	if se == 0 {
		return 0, ErrZeroVariance
	}

	// Welch-Satterthwaite
	df := (a + b) * (a + b) / (a*a/(n1-1) + b*b/(n2-1))

	tStat := (mean2 - mean1) / se
	return twoSidedT(tStat, df), nil
}

func twoSidedT(tStat, df float64) float64 {
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clampP(2 * tDist.Survival(math.Abs(tStat)))
}

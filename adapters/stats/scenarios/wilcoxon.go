package scenarios

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// exactWilcoxonLimit is the largest number of non-zero differences for which
// the exact null distribution is enumerated.
const exactWilcoxonLimit = 50

// WilcoxonSignedRank is the two-sided Wilcoxon signed-rank test on the pair
// differences. Zero differences are dropped. Without ties and for at most 50
// non-zero differences the p-value is exact; otherwise it uses the normal
// approximation with tie-corrected variance and no continuity correction.
func WilcoxonSignedRank(data Paired) (float64, error) {
	diffs, err := data.Differences()
	if err != nil {
		return 0, err
	}
	if len(diffs) == 0 {
		return 0, ErrInsufficientSamples
	}

	nonZero := make([]float64, 0, len(diffs))
	for _, d := range diffs {
		if d != 0 {
			nonZero = append(nonZero, d)
		}
	}
	n := len(nonZero)
	if n == 0 {
		return 1.0, nil
	}

	ranks, tieGroups := signedRankAbs(nonZero)

	wPlus := 0.0
	for i, d := range nonZero {
		if d > 0 {
			wPlus += ranks[i]
		}
	}

	if len(tieGroups) == 0 && n <= exactWilcoxonLimit {
		return exactSignedRankPValue(wPlus, n), nil
	}
	return normalSignedRankPValue(wPlus, n, tieGroups), nil
}

// signedRankAbs ranks |values| ascending with average ranks for ties and
// returns the size of every tie group larger than one.
func signedRankAbs(values []float64) ([]float64, []int) {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return math.Abs(values[order[a]]) < math.Abs(values[order[b]])
	})

	ranks := make([]float64, n)
	var ties []int
	for start := 0; start < n; {
		end := start + 1
		for end < n && math.Abs(values[order[end]]) == math.Abs(values[order[start]]) {
			end++
		}
		// positions start..end-1 share ranks start+1..end
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			ranks[order[k]] = avg
		}
		if end-start > 1 {
			ties = append(ties, end-start)
		}
		start = end
	}
	return ranks, ties
}

// exactSignedRankPValue enumerates the null distribution of W+ by dynamic
// programming over subset sums of ranks 1..n.
func exactSignedRankPValue(wPlus float64, n int) float64 {
	total := n * (n + 1) / 2
	w := int(math.Round(wPlus))
	if total-w < w {
		w = total - w
	}

	counts := make([]float64, total+1)
	counts[0] = 1
	for r := 1; r <= n; r++ {
		for s := total; s >= r; s-- {
			counts[s] += counts[s-r]
		}
	}

	cum := 0.0
	for s := 0; s <= w; s++ {
		cum += counts[s]
	}
	return clampP(2 * cum / math.Ldexp(1, n))
}

func normalSignedRankPValue(wPlus float64, n int, tieGroups []int) float64 {
	nf := float64(n)
	mean := nf * (nf + 1) / 4
	variance := nf * (nf + 1) * (2*nf + 1) / 24
	for _, t := range tieGroups {
		tf := float64(t)
		variance -= (tf*tf*tf - tf) / 48
	}
	if variance <= 0 {
		return 1.0
	}

	z := (wPlus - mean) / math.Sqrt(variance)
	return clampP(2 * distuv.UnitNormal.Survival(math.Abs(z)))
}

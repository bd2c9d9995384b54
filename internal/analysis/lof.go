package analysis

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultLOFNeighbors is the neighborhood size used when enough points exist.
	DefaultLOFNeighbors = 20
	// DefaultAnomalyProportion is the expected share of anomalies.
	DefaultAnomalyProportion = 0.01
	// lrdEpsilon keeps the local reachability density finite for duplicates.
	lrdEpsilon = 1e-10
)

// LOFResult reports precipitation anomalies found by the Local Outlier Factor.
type LOFResult struct {
	// Candidates are the indices of the non-zero samples that were scored.
	Candidates []int `json:"candidates"`
	// Scores holds the outlier factor of each candidate; ~1 means inlier.
	Scores    []float64 `json:"scores"`
	Threshold float64   `json:"threshold"`
	Neighbors int       `json:"neighbors"`
	// Anomalies are indices into the input with a score above Threshold.
	Anomalies []int  `json:"anomalies"`
	Warning   string `json:"warning,omitempty"`
}

// PrecipitationAnomalies scores the non-zero values of x on a log1p scale with
// LOF and flags the scores above the (1 - proportion) quantile. NaN values are
// treated as zero.
func PrecipitationAnomalies(x []float64, proportion float64) (LOFResult, error) {
	if !(proportion > 0 && proportion <= 0.5) {
		return LOFResult{}, fmt.Errorf("%w: proportion %g must be within (0, 0.5]", ErrInvalidInput, proportion)
	}

	res := LOFResult{Candidates: []int{}, Scores: []float64{}, Anomalies: []int{}}
	var values []float64
	for i, v := range x {
		if v > 0 {
			res.Candidates = append(res.Candidates, i)
			values = append(values, math.Log1p(v))
		}
	}
	if len(values) == 0 {
		res.Warning = "no non-zero precipitation values to analyze"
		return res, nil
	}

	k := min(DefaultLOFNeighbors, len(values)-1)
	res.Neighbors = k
	if k < 1 {
		res.Scores = []float64{1}
		res.Threshold = 1
		res.Warning = "too few non-zero precipitation values to score"
		return res, nil
	}

	res.Scores = LocalOutlierFactor(values, k)
	res.Threshold = Quantile(res.Scores, 1-proportion)
	for i, s := range res.Scores {
		if s > res.Threshold {
			res.Anomalies = append(res.Anomalies, res.Candidates[i])
		}
	}
	return res, nil
}

// LocalOutlierFactor computes the LOF of each one-dimensional point using its
// k nearest neighbors, excluding the point itself. k must be in [1, len(x)-1].
func LocalOutlierFactor(x []float64, k int) []float64 {
	n := len(x)
	neighbors := nearestNeighbors(x, k)

	kdist := make([]float64, n)
	for i, nb := range neighbors {
		kdist[i] = math.Abs(x[i] - x[nb[k-1]])
	}

	lrd := make([]float64, n)
	for i, nb := range neighbors {
		var sum float64
		for _, j := range nb {
			sum += max(kdist[j], math.Abs(x[i]-x[j]))
		}
		lrd[i] = 1 / (sum/float64(k) + lrdEpsilon)
	}

	scores := make([]float64, n)
	for i, nb := range neighbors {
		var sum float64
		for _, j := range nb {
			sum += lrd[j]
		}
		scores[i] = sum / float64(k) / lrd[i]
	}
	return scores
}

// nearestNeighbors returns, for each point, the indices of its k nearest
// neighbors ordered by distance. Points are sorted once and neighbors are
// gathered by expanding left and right from each position.
func nearestNeighbors(x []float64, k int) [][]int {
	n := len(x)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })

	out := make([][]int, n)
	for pos, idx := range order {
		nb := make([]int, 0, k)
		left, right := pos-1, pos+1
		for len(nb) < k {
			switch {
			case left < 0:
				nb = append(nb, order[right])
				right++
			case right >= n:
				nb = append(nb, order[left])
				left--
			case x[idx]-x[order[left]] <= x[order[right]]-x[idx]:
				nb = append(nb, order[left])
				left--
			default:
				nb = append(nb, order[right])
				right++
			}
		}
		out[idx] = nb
	}
	return out
}

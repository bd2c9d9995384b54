package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// madScale makes the median absolute deviation a consistent estimator of σ
// for normally distributed data.
const madScale = 1.4826

// Median returns the median of x, averaging the two middle values for even
// lengths. It returns NaN for empty input.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// RobustSigma estimates the standard deviation of x as 1.4826·MAD.
func RobustSigma(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	dev := append([]float64(nil), x...)
	floats.AddConst(-Median(x), dev)
	for i, v := range dev {
		dev[i] = math.Abs(v)
	}
	return madScale * Median(dev)
}

// Quantile returns the p-quantile of x with linear interpolation between
// order statistics (Hyndman and Fan type 7).
func Quantile(x []float64, p float64) float64 {
	if len(x) == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	p = min(max(p, 0), 1)
	h := p * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	hi := min(lo+1, len(sorted)-1)
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

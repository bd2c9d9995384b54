package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Outlier detection methods.
const (
	MethodTrend = "trend"
	MethodDCT   = "dct"
)

// Default SPC parameters per method.
const (
	DefaultTrendCutoffHours = 400.0
	DefaultTrendNStd        = 2.0
	DefaultDCTCutoffHours   = 24 * 30 * 6
	DefaultDCTNStd          = 3.5
)

const butterworthOrder = 4

// SPCResult holds the control band of a statistical process control check and
// the indices of the samples falling outside it.
type SPCResult struct {
	Method   string    `json:"method"`
	Baseline []float64 `json:"baseline"`
	Lower    []float64 `json:"lower"`
	Upper    []float64 `json:"upper"`
	Sigma    float64   `json:"sigma"`
	Outliers []int     `json:"outliers"`
}

// TrendOutliers flags samples outside trend ± nStd·σ̂, where the trend is a
// zero-phase 4th order Butterworth low-pass of x with the given cutoff period
// in hours and σ̂ the robust deviation of the residual. The sample interval is
// one hour.
func TrendOutliers(x []float64, cutoffHours, nStd float64) (SPCResult, error) {
	if err := validateSPC(x, nStd); err != nil {
		return SPCResult{}, err
	}
	// The cutoff frequency must stay below Nyquist.
	if !(cutoffHours > 2) || math.IsInf(cutoffHours, 0) {
		return SPCResult{}, fmt.Errorf("%w: cutoff_hours %g must be greater than 2", ErrInvalidInput, cutoffHours)
	}

	// Nyquist is 0.5 cycles/hour, so the normalized cutoff is 2/cutoff.
	wn := (1 / cutoffHours) / 0.5
	sections, err := ButterworthLowpass(butterworthOrder, wn)
	if err != nil {
		return SPCResult{}, err
	}
	trend := FiltFilt(sections, x)

	residual := floats.SubTo(make([]float64, len(x)), x, trend)
	sigma := RobustSigma(residual)

	res := SPCResult{
		Method:   MethodTrend,
		Baseline: trend,
		Lower:    make([]float64, len(x)),
		Upper:    make([]float64, len(x)),
		Sigma:    sigma,
		Outliers: []int{},
	}
	for i, v := range x {
		res.Lower[i] = trend[i] - nStd*sigma
		res.Upper[i] = trend[i] + nStd*sigma
		if v > res.Upper[i] || v < res.Lower[i] {
			res.Outliers = append(res.Outliers, i)
		}
	}
	return res, nil
}

// DCTOutliers flags samples outside median(x) ± nStd·σ̂. σ̂ is the robust
// deviation of x from its low-frequency reconstruction, which keeps the first
// max(1, n/cutoffHours) coefficients of the orthonormal DCT-II.
func DCTOutliers(x []float64, cutoffHours, nStd float64) (SPCResult, error) {
	if err := validateSPC(x, nStd); err != nil {
		return SPCResult{}, err
	}
	if !(cutoffHours >= 1) || math.IsInf(cutoffHours, 0) {
		return SPCResult{}, fmt.Errorf("%w: cutoff_hours %g must be at least 1", ErrInvalidInput, cutoffHours)
	}

	n := len(x)
	keep := max(1, int(float64(n)/max(1, cutoffHours)))
	smooth := DCTLowpass(x, keep)

	residual := floats.SubTo(make([]float64, n), x, smooth)
	sigma := RobustSigma(residual)
	center := Median(x)
	lo, hi := center-nStd*sigma, center+nStd*sigma

	res := SPCResult{
		Method:   MethodDCT,
		Baseline: smooth,
		Lower:    make([]float64, n),
		Upper:    make([]float64, n),
		Sigma:    sigma,
		Outliers: []int{},
	}
	for i, v := range x {
		res.Lower[i] = lo
		res.Upper[i] = hi
		if v < lo || v > hi {
			res.Outliers = append(res.Outliers, i)
		}
	}
	return res, nil
}

// DCTLowpass reconstructs x from its first keep DCT-II coefficients.
func DCTLowpass(x []float64, keep int) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	if keep >= n {
		return append([]float64(nil), x...)
	}

	// CosSequence evaluates 4·DCT-II and CosCoefficients inverts it up to a
	// factor of 4n; the basis is orthogonal so normalization does not change
	// which components survive.
	q := fourier.NewQuarterWaveFFT(n)
	coeff := q.CosSequence(nil, x)
	for i := keep; i < n; i++ {
		coeff[i] = 0
	}
	out := q.CosCoefficients(nil, coeff)
	floats.Scale(1/float64(4*n), out)
	return out
}

func validateSPC(x []float64, nStd float64) error {
	switch {
	case len(x) == 0:
		return fmt.Errorf("%w: no samples", ErrInvalidInput)
	case floats.HasNaN(x):
		return fmt.Errorf("%w: samples contain NaN", ErrInvalidInput)
	case !(nStd > 0) || math.IsInf(nStd, 0):
		return fmt.Errorf("%w: n_std %g must be positive", ErrInvalidInput, nStd)
	}
	return nil
}

package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Biquad is one second-order section in transposed direct form II,
// normalized so that a0 = 1.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// ButterworthLowpass designs an even-order digital Butterworth low-pass filter
// as a cascade of biquads. wn is the cutoff as a fraction of the Nyquist
// frequency and must lie in (0, 1). The bilinear transform is prewarped at the
// cutoff, which matches scipy.signal.butter.
func ButterworthLowpass(order int, wn float64) ([]Biquad, error) {
	if order < 2 || order%2 != 0 {
		return nil, fmt.Errorf("%w: butterworth order %d must be even and positive", ErrInvalidInput, order)
	}
	if !(wn > 0 && wn < 1) {
		return nil, fmt.Errorf("%w: normalized cutoff %g must be within (0, 1)", ErrInvalidInput, wn)
	}

	k := math.Tan(math.Pi * wn / 2)
	k2 := k * k
	sections := make([]Biquad, order/2)
	for i := range sections {
		theta := float64(2*i+1) * math.Pi / float64(2*order)
		q := 1 / (2 * math.Cos(theta))
		norm := 1 / (1 + k/q + k2)
		b0 := k2 * norm
		sections[i] = Biquad{
			B0: b0,
			B1: 2 * b0,
			B2: b0,
			A1: 2 * (k2 - 1) * norm,
			A2: (1 - k/q + k2) * norm,
		}
	}
	return sections, nil
}

// steadyState returns the filter state that makes a constant input c pass
// through unchanged. Valid for sections with unit DC gain.
func (s Biquad) steadyState(c float64) (z1, z2 float64) {
	z2 = (s.B2 - s.A2) * c
	z1 = (s.B1-s.A1)*c + z2
	return z1, z2
}

// apply filters x in place starting from the steady state of x[0].
func (s Biquad) apply(x []float64) {
	if len(x) == 0 {
		return
	}
	z1, z2 := s.steadyState(x[0])
	for i, in := range x {
		out := s.B0*in + z1
		z1 = s.B1*in - s.A1*out + z2
		z2 = s.B2*in - s.A2*out
		x[i] = out
	}
}

func cascade(sections []Biquad, x []float64) {
	for _, s := range sections {
		s.apply(x)
	}
}

// FiltFilt applies the cascade forward and then backward for zero phase
// distortion. The signal is extended at both ends by odd reflection of up to
// 3·(2·len(sections)+1) samples to suppress edge transients.
func FiltFilt(sections []Biquad, x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []float64{x[0]}
	}

	pad := min(3*(2*len(sections)+1), n-1)
	ext := make([]float64, n+2*pad)
	for i := range pad {
		ext[i] = 2*x[0] - x[pad-i]
		ext[n+pad+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)

	cascade(sections, ext)
	floats.Reverse(ext)
	cascade(sections, ext)
	floats.Reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out
}

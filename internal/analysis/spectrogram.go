package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultSegmentLength is one week of hourly samples.
const DefaultSegmentLength = 24 * 7

// dbFloor keeps the decibel conversion finite for zero power.
const dbFloor = 1e-12

// Spectrogram is a short-time power spectral density estimate.
type Spectrogram struct {
	// Frequencies are in cycles per sample (cycles/hour for hourly data).
	Frequencies []float64 `json:"frequencies"`
	// Times are segment centers in samples from the start of the series.
	Times []float64 `json:"times"`
	// Power is indexed [frequency][segment].
	Power    [][]float64 `json:"power"`
	PowerDB  [][]float64 `json:"power_db"`
	NPerSeg  int         `json:"nperseg"`
	NOverlap int         `json:"noverlap"`
}

// ComputeSpectrogram splits x into Hann-windowed segments of nperseg samples
// overlapping by noverlap, removes each segment's mean and returns the
// one-sided power spectral density at a sampling rate of one per hour.
// A negative noverlap selects nperseg/2. nperseg larger than the input is
// clamped to its length.
func ComputeSpectrogram(x []float64, nperseg, noverlap int) (Spectrogram, error) {
	n := len(x)
	if n < 2 {
		return Spectrogram{}, fmt.Errorf("%w: spectrogram needs at least 2 samples", ErrInvalidInput)
	}
	if floats.HasNaN(x) {
		return Spectrogram{}, fmt.Errorf("%w: samples contain NaN", ErrInvalidInput)
	}
	if nperseg < 2 {
		return Spectrogram{}, fmt.Errorf("%w: nperseg %d must be at least 2", ErrInvalidInput, nperseg)
	}
	nperseg = min(nperseg, n)
	if noverlap < 0 {
		noverlap = nperseg / 2
	}
	if noverlap >= nperseg {
		return Spectrogram{}, fmt.Errorf("%w: noverlap %d must be less than nperseg %d", ErrInvalidInput, noverlap, nperseg)
	}

	const fs = 1.0
	window := hann(nperseg)
	scale := 1 / (fs * floats.Dot(window, window))

	step := nperseg - noverlap
	segments := (n - noverlap) / step
	nfreq := nperseg/2 + 1

	sg := Spectrogram{
		Frequencies: make([]float64, nfreq),
		Times:       make([]float64, segments),
		Power:       make([][]float64, nfreq),
		PowerDB:     make([][]float64, nfreq),
		NPerSeg:     nperseg,
		NOverlap:    noverlap,
	}
	fft := fourier.NewFFT(nperseg)
	for k := range nfreq {
		sg.Frequencies[k] = float64(k) * fs / float64(nperseg)
		sg.Power[k] = make([]float64, segments)
		sg.PowerDB[k] = make([]float64, segments)
	}

	seg := make([]float64, nperseg)
	coeff := make([]complex128, nfreq)
	for s := range segments {
		start := s * step
		copy(seg, x[start:start+nperseg])
		floats.AddConst(-stat.Mean(seg, nil), seg)
		floats.Mul(seg, window)
		fft.Coefficients(coeff, seg)

		sg.Times[s] = (float64(nperseg)/2 + float64(start)) / fs
		for k, c := range coeff {
			p := math.Pow(cmplx.Abs(c), 2) * scale
			if k > 0 && (nperseg%2 == 1 || k < nfreq-1) {
				p *= 2
			}
			sg.Power[k][s] = p
			sg.PowerDB[k][s] = 10 * math.Log10(p+dbFloor)
		}
	}
	return sg, nil
}

// hann returns the periodic Hann window used for spectral analysis.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

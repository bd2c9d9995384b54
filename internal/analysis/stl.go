package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultSTLPeriod is one week of hourly samples.
const DefaultSTLPeriod = 24 * 7

// STLParams configure the decomposition. Zero values take the defaults of a
// robust STL: seasonal window 7, trend and low-pass windows derived from the
// period, 2 inner and 15 outer iterations.
type STLParams struct {
	Period   int
	Seasonal int
	Trend    int
	LowPass  int
	Inner    int
	Outer    int
}

// STLResult holds the additive components of an STL decomposition.
type STLResult struct {
	Period    int       `json:"period"`
	Trend     []float64 `json:"trend"`
	Seasonal  []float64 `json:"seasonal"`
	Remainder []float64 `json:"remainder"`
	Weights   []float64 `json:"weights"`
}

func (p STLParams) withDefaults() STLParams {
	if p.Period == 0 {
		p.Period = DefaultSTLPeriod
	}
	if p.Seasonal == 0 {
		p.Seasonal = 7
	}
	if p.Trend == 0 {
		p.Trend = int(math.Ceil(1.5 * float64(p.Period) / (1 - 1.5/float64(p.Seasonal))))
		p.Trend = nextOdd(p.Trend)
	}
	if p.LowPass == 0 {
		p.LowPass = nextOdd(p.Period + 1)
	}
	if p.Inner == 0 {
		p.Inner = 2
	}
	if p.Outer == 0 {
		p.Outer = 15
	}
	return p
}

func nextOdd(v int) int {
	if v%2 == 0 {
		return v + 1
	}
	return v
}

func (p STLParams) validate(n int) error {
	switch {
	case p.Period < 2:
		return fmt.Errorf("%w: period %d must be at least 2", ErrInvalidInput, p.Period)
	case n < 2*p.Period:
		return fmt.Errorf("%w: %d samples cover fewer than two periods of %d", ErrInvalidInput, n, p.Period)
	case p.Seasonal < 3 || p.Seasonal%2 == 0:
		return fmt.Errorf("%w: seasonal window %d must be odd and at least 3", ErrInvalidInput, p.Seasonal)
	case p.Trend < 3 || p.Trend%2 == 0:
		return fmt.Errorf("%w: trend window %d must be odd and at least 3", ErrInvalidInput, p.Trend)
	case p.LowPass < 3 || p.LowPass%2 == 0:
		return fmt.Errorf("%w: low-pass window %d must be odd and at least 3", ErrInvalidInput, p.LowPass)
	case p.Inner < 1 || p.Outer < 0:
		return fmt.Errorf("%w: iteration counts must be positive", ErrInvalidInput)
	}
	return nil
}

// STL decomposes y into trend, seasonal and remainder components with the
// loess-based procedure of Cleveland et al. (1990), using robustness
// weights from the outer iterations. y must be regularly sampled without gaps.
func STL(y []float64, params STLParams) (STLResult, error) {
	p := params.withDefaults()
	n := len(y)
	if err := p.validate(n); err != nil {
		return STLResult{}, err
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return STLResult{}, fmt.Errorf("%w: series contains non-finite values", ErrInvalidInput)
		}
	}

	d := newDecomposer(y, p)
	userw := false
	for k := 0; ; k++ {
		d.step(userw)
		if k >= p.Outer {
			break
		}
		d.updateWeights()
		userw = true
	}
	if p.Outer == 0 {
		for i := range d.rw {
			d.rw[i] = 1
		}
	}

	res := STLResult{
		Period:    p.Period,
		Trend:     d.trend,
		Seasonal:  d.season,
		Remainder: make([]float64, n),
		Weights:   d.rw,
	}
	for i := range y {
		res.Remainder[i] = y[i] - d.trend[i] - d.season[i]
	}
	return res, nil
}

type decomposer struct {
	y      []float64
	p      STLParams
	trend  []float64
	season []float64
	rw     []float64
}

func newDecomposer(y []float64, p STLParams) *decomposer {
	n := len(y)
	return &decomposer{
		y:      y,
		p:      p,
		trend:  make([]float64, n),
		season: make([]float64, n),
		rw:     make([]float64, n),
	}
}

// step runs the inner loop: detrend, smooth cycle-subseries, remove the
// low-frequency part of the seasonal, deseasonalize and smooth the trend.
func (d *decomposer) step(userw bool) {
	n, np := len(d.y), d.p.Period
	w := make([]float64, n)
	for range d.p.Inner {
		for i := range w {
			w[i] = d.y[i] - d.trend[i]
		}
		cycle := d.smoothSubseries(w, userw)

		low := movingAverage(movingAverage(movingAverage(cycle, np), np), 3)
		low = loessSmooth(low, d.p.LowPass, nil)

		for i := range n {
			d.season[i] = cycle[np+i] - low[i]
			w[i] = d.y[i] - d.season[i]
		}
		var rw []float64
		if userw {
			rw = d.rw
		}
		d.trend = loessSmooth(w, d.p.Trend, rw)
	}
}

// smoothSubseries loess-smooths each cycle-subseries and extends it by one
// period at both ends. The result has length n + 2·period.
func (d *decomposer) smoothSubseries(w []float64, userw bool) []float64 {
	n, np, ns := len(w), d.p.Period, d.p.Seasonal
	out := make([]float64, n+2*np)

	for j := range np {
		k := (n-j-1)/np + 1
		sub := make([]float64, k)
		var subW []float64
		if userw {
			subW = make([]float64, k)
		}
		for i := range k {
			sub[i] = w[i*np+j]
			if userw {
				subW[i] = d.rw[i*np+j]
			}
		}

		smoothed := make([]float64, k+2)
		copy(smoothed[1:], loessSmooth(sub, ns, subW))

		scratch := make([]float64, k)
		if v, ok := loessAt(sub, ns, 0, 1, min(ns, k), scratch, subW); ok {
			smoothed[0] = v
		} else {
			smoothed[0] = smoothed[1]
		}
		if v, ok := loessAt(sub, ns, float64(k+1), max(1, k-ns+1), k, scratch, subW); ok {
			smoothed[k+1] = v
		} else {
			smoothed[k+1] = smoothed[k]
		}

		for m := range k + 2 {
			out[m*np+j] = smoothed[m]
		}
	}
	return out
}

// updateWeights sets bisquare robustness weights from the current remainder.
func (d *decomposer) updateWeights() {
	n := len(d.y)
	r := make([]float64, n)
	for i := range r {
		r[i] = math.Abs(d.y[i] - d.trend[i] - d.season[i])
	}
	h := 6 * Median(r)
	c9, c1 := 0.999*h, 0.001*h
	for i, v := range r {
		switch {
		case v <= c1:
			d.rw[i] = 1
		case v <= c9:
			u := v / h
			d.rw[i] = (1 - u*u) * (1 - u*u)
		default:
			d.rw[i] = 0
		}
	}
}

// loessSmooth evaluates a local linear fit with a tricube kernel of the given
// span at every position of y. rw are optional robustness weights.
func loessSmooth(y []float64, span int, rw []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		copy(out, y)
		return out
	}
	scratch := make([]float64, n)

	nleft, nright := 1, min(span, n)
	half := (span + 1) / 2
	for i := 1; i <= n; i++ {
		if span < n && i > half && nright != n {
			nleft++
			nright++
		}
		if v, ok := loessAt(y, span, float64(i), nleft, nright, scratch, rw); ok {
			out[i-1] = v
		} else {
			out[i-1] = y[i-1]
		}
	}
	return out
}

// loessAt fits y at the 1-based position xs using the points in
// [nleft, nright]. ok is false when every weight in the window is zero.
func loessAt(y []float64, span int, xs float64, nleft, nright int, w, rw []float64) (float64, bool) {
	n := len(y)
	h := math.Max(xs-float64(nleft), float64(nright)-xs)
	if span > n {
		h += float64((span - n) / 2)
	}
	h9, h1 := 0.999*h, 0.001*h

	var total float64
	for j := nleft; j <= nright; j++ {
		w[j-1] = 0
		r := math.Abs(float64(j) - xs)
		if r > h9 {
			continue
		}
		if r <= h1 {
			w[j-1] = 1
		} else {
			c := r / h
			c = 1 - c*c*c
			w[j-1] = c * c * c
		}
		if rw != nil {
			w[j-1] *= rw[j-1]
		}
		total += w[j-1]
	}
	if total <= 0 {
		return 0, false
	}
	for j := nleft; j <= nright; j++ {
		w[j-1] /= total
	}

	if h > 0 {
		var a float64
		for j := nleft; j <= nright; j++ {
			a += w[j-1] * float64(j)
		}
		var b float64
		for j := nleft; j <= nright; j++ {
			dj := float64(j) - a
			b += w[j-1] * dj * dj
		}
		if math.Sqrt(b) > 0.001*float64(n-1) {
			slope := (xs - a) / b
			for j := nleft; j <= nright; j++ {
				w[j-1] *= slope*(float64(j)-a) + 1
			}
		}
	}

	var ys float64
	for j := nleft; j <= nright; j++ {
		ys += w[j-1] * y[j-1]
	}
	return ys, true
}

// movingAverage returns the len(x)-window+1 means of consecutive windows.
func movingAverage(x []float64, window int) []float64 {
	n := len(x) - window + 1
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	var sum float64
	for i := range window {
		sum += x[i]
	}
	out[0] = sum / float64(window)
	for i := 1; i < n; i++ {
		sum += x[i+window-1] - x[i-1]
		out[i] = sum / float64(window)
	}
	return out
}

// Regularize places samples on a fixed grid from the first to the last
// timestamp. Grid points without a sample are linearly interpolated in time
// from their neighbors; samples off the grid are dropped, as are grid points
// before the first finite value.
func Regularize(times []time.Time, values []float64, step time.Duration) ([]time.Time, []float64, error) {
	if len(times) != len(values) {
		return nil, nil, fmt.Errorf("%w: %d timestamps but %d values", ErrInvalidInput, len(times), len(values))
	}
	if len(times) == 0 {
		return nil, nil, nil
	}
	if step <= 0 {
		return nil, nil, fmt.Errorf("%w: step must be positive", ErrInvalidInput)
	}

	order := make([]int, len(times))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return times[order[a]].Before(times[order[b]]) })

	start := times[order[0]].UTC()
	end := times[order[len(order)-1]].UTC()
	size := int(end.Sub(start)/step) + 1

	grid := make([]time.Time, size)
	vals := make([]float64, size)
	known := make([]bool, size)
	for i := range grid {
		grid[i] = start.Add(time.Duration(i) * step)
	}
	for _, idx := range order {
		offset := times[idx].UTC().Sub(start)
		if offset%step != 0 || math.IsNaN(values[idx]) {
			continue
		}
		slot := int(offset / step)
		vals[slot] = values[idx]
		known[slot] = true
	}

	first := -1
	prev := -1
	for i := range vals {
		if !known[i] {
			continue
		}
		if first < 0 {
			first = i
		}
		if prev >= 0 && i-prev > 1 {
			for g := prev + 1; g < i; g++ {
				frac := float64(g-prev) / float64(i-prev)
				vals[g] = vals[prev] + frac*(vals[i]-vals[prev])
			}
		}
		prev = i
	}
	if first < 0 {
		return nil, nil, fmt.Errorf("%w: no finite values", ErrInvalidInput)
	}
	// Trailing grid points after the last finite value carry it forward.
	for i := prev + 1; i < len(vals); i++ {
		vals[i] = vals[prev]
	}
	return grid[first:], vals[first:], nil
}

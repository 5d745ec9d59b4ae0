package statscollector

import "math"

// Running accumulates statistics incrementally using Welford's algorithm, so
// live views get O(1) updates per sample. The zero value is ready to use.
type Running struct {
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64
}

// Add folds a value, in megabytes, into the accumulator.
func (r *Running) Add(v float64) {
	r.n++
	if r.n == 1 {
		r.min, r.max = v, v
	} else {
		r.min = math.Min(r.min, v)
		r.max = math.Max(r.max, v)
	}
	delta := v - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (v - r.mean)
}

// Count returns the number of values added.
func (r *Running) Count() int {
	return r.n
}

// Summary returns the accumulated statistics using the sample deviation.
func (r *Running) Summary() Summary {
	if r.n == 0 {
		return Summary{}
	}
	s := Summary{
		Count: r.n,
		Max:   r.max,
		Min:   r.min,
		Mean:  clamp(r.mean, r.min, r.max),
	}
	if r.n >= 2 {
		s.Sigma3 = 3 * math.Sqrt(math.Max(r.m2, 0)/float64(r.n-SampleDDOF))
	}
	return s
}

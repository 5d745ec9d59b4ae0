package statscollector

import "math"

const (
	// SampleDDOF selects the sample standard deviation (Bessel's correction).
	SampleDDOF = 1
	// PopulationDDOF selects the population standard deviation.
	PopulationDDOF = 0
)

// Summary holds descriptive statistics of a series, in megabytes.
//
// Sigma3 is three times the standard deviation. It is a volatility indicator
// for memory usage, not a statistical confidence bound.
type Summary struct {
	Count  int     `json:"count"`
	Max    float64 `json:"max_mb"`
	Min    float64 `json:"min_mb"`
	Mean   float64 `json:"mean_mb"`
	Sigma3 float64 `json:"sigma3_mb"`
}

// Empty reports whether the summary was computed over no samples.
func (s Summary) Empty() bool {
	return s.Count == 0
}

// Std returns the standard deviation the summary was built with.
func (s Summary) Std() float64 {
	return s.Sigma3 / 3
}

// Rounded returns a copy with every value rounded to two decimals for display.
func (s Summary) Rounded() Summary {
	return Summary{
		Count:  s.Count,
		Max:    Round2(s.Max),
		Min:    Round2(s.Min),
		Mean:   Round2(s.Mean),
		Sigma3: Round2(s.Sigma3),
	}
}

// Summarize computes max, min, mean and 3× sample standard deviation.
// An empty input yields the zero Summary.
func Summarize(values []float64) Summary {
	return SummarizeDDOF(values, SampleDDOF)
}

// SummarizeDDOF is Summarize with an explicit delta degrees of freedom used in
// the variance denominator (n - ddof). Sigma3 stays 0 below two samples.
func SummarizeDDOF(values []float64, ddof int) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	s := Summary{Count: n, Max: values[0], Min: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		if v > s.Max {
			s.Max = v
		}
		if v < s.Min {
			s.Min = v
		}
	}
	s.Mean = clamp(sum/float64(n), s.Min, s.Max)

	if n >= 2 && n > ddof {
		var sq float64
		for _, v := range values {
			d := v - s.Mean
			sq += d * d
		}
		s.Sigma3 = 3 * math.Sqrt(sq/float64(n-ddof))
	}
	return s
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// mean of equal values may drift one ulp outside [min, max]
func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

package statscollector

import "time"

// BytesPerMB is the divisor used to express byte counts as megabytes.
const BytesPerMB = 1024 * 1024

// Sample is a single timestamped resident memory reading.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Bytes     uint64    `json:"bytes"`
}

// MB returns the sample value in megabytes.
func (s Sample) MB() float64 {
	return float64(s.Bytes) / BytesPerMB
}

// Append records a new sample. It never rejects a sample.
func (sc *Collector) Append(s Sample) {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	sc.samples = append(sc.samples, s)
	sc.running.Add(s.MB())
}

func toMegabytes(samples []Sample) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.MB()
	}
	return values
}

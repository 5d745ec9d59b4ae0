package statscollector

import (
	"sync"
)

// Collector is the append-only memory time series of one tracked process name.
// Samples are never removed while a session is active.
type Collector struct {
	name    string
	samples []Sample
	running Running
	lock    sync.RWMutex
}

// NewCollector creates an empty Collector for the given process name.
func NewCollector(name string) *Collector {
	return &Collector{
		name:    name,
		samples: make([]Sample, 0),
	}
}

// Snapshot returns an immutable copy of the series.
func (sc *Collector) Snapshot() Series {
	sc.lock.RLock()
	defer sc.lock.RUnlock()

	samples := make([]Sample, len(sc.samples))
	copy(samples, sc.samples)
	return Series{
		Name:    sc.name,
		Samples: samples,
		Live:    sc.running.Summary(),
	}
}

// Series is a point-in-time copy of a Collector. It is safe to share between
// goroutines because nothing mutates it after creation.
type Series struct {
	Name    string   `json:"name"`
	Samples []Sample `json:"samples"`
	Live    Summary  `json:"live"`
}

// Len returns the number of samples in the series.
func (s Series) Len() int {
	return len(s.Samples)
}

// Values returns the series values in megabytes.
func (s Series) Values() []float64 {
	return toMegabytes(s.Samples)
}

// Summary computes the summary statistics of the series.
func (s Series) Summary() Summary {
	return Summarize(s.Values())
}

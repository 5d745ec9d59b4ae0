package monitor

import (
	"time"

	"github.com/voluzi/memwatch/pkg/statscollector"
)

// Snapshot is an immutable point-in-time view of every tracked series. A
// published snapshot always contains whole ticks.
type Snapshot struct {
	SessionID string                           `json:"session_id"`
	State     State                            `json:"state"`
	Config    Config                           `json:"config"`
	Tick      int                              `json:"tick"`
	StartedAt time.Time                        `json:"started_at"`
	TakenAt   time.Time                        `json:"taken_at"`
	Series    map[string]statscollector.Series `json:"series"`
}

// Ordered returns the series in the configured name order.
func (s Snapshot) Ordered() []statscollector.Series {
	result := make([]statscollector.Series, 0, len(s.Series))
	for _, name := range s.Config.Names {
		if series, ok := s.Series[name]; ok {
			result = append(result, series)
		}
	}
	return result
}

// Summaries computes the final statistics of every series.
func (s Snapshot) Summaries() map[string]statscollector.Summary {
	result := make(map[string]statscollector.Summary, len(s.Series))
	for name, series := range s.Series {
		result[name] = series.Summary()
	}
	return result
}

// Elapsed returns the sampling time covered by the recorded ticks.
func (s Snapshot) Elapsed() time.Duration {
	return time.Duration(s.Tick) * s.Config.Interval
}

// Progress returns the completed fraction of the configured duration.
func (s Snapshot) Progress() float64 {
	expected := s.Config.ExpectedTicks()
	if expected == 0 {
		return 0
	}
	return float64(s.Tick) / float64(expected)
}

// HasData reports whether any series holds at least one sample.
func (s Snapshot) HasData() bool {
	for _, series := range s.Series {
		if series.Len() > 0 {
			return true
		}
	}
	return false
}

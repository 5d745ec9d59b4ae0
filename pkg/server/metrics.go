package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voluzi/memwatch/pkg/monitor"
)

const namespace = "memwatch"

var (
	rssDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "process", "rss_bytes"),
		"Resident memory summed over all processes sharing a name, as of the latest tick.",
		[]string{"process"}, nil,
	)
	ticksDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "session", "ticks"),
		"Ticks recorded by the current session. Resets when a new session starts.",
		nil, nil,
	)
	stateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "session", "state"),
		"Session lifecycle state (0 idle, 1 running, 2 completed, 3 stopped).",
		nil, nil,
	)
)

// sessionCollector derives metrics from a snapshot at scrape time.
type sessionCollector struct {
	source Source
}

func (c *sessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- rssDesc
	ch <- ticksDesc
	ch <- stateDesc
}

func (c *sessionCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()

	ch <- prometheus.MustNewConstMetric(ticksDesc, prometheus.GaugeValue, float64(snap.Tick))
	ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, float64(snap.State))

	for _, series := range snap.Ordered() {
		n := len(series.Samples)
		if n == 0 {
			continue
		}
		ch <- prometheus.MustNewConstMetric(rssDesc, prometheus.GaugeValue, float64(series.Samples[n-1].Bytes), series.Name)
	}
}

func newRegistry(source Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(&sessionCollector{source: source})
	return reg
}

var _ prometheus.Collector = (*sessionCollector)(nil)

// Source provides the session state served by the endpoints.
type Source interface {
	Snapshot() monitor.Snapshot
}

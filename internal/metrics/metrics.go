// Package metrics exposes the operator-facing counters for failures that the
// public API deliberately hides.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results.
const (
	ResultOK          = "ok"
	ResultNetwork     = "network_error"
	ResultStatus      = "bad_status"
	ResultParse       = "parse_error"
	ResultUnavailable = "unavailable"
)

// Recorder is what the aggregator, fetcher and probe report into.
type Recorder interface {
	RecordFeedFetch(result string, d time.Duration)
	RecordRejected(reason string)
	RecordEventsServed(n int)
	RecordAggregatePanic()
	RecordProbe(result string)
}

// Collector records into Prometheus metrics.
type Collector struct {
	feedFetch     *prometheus.CounterVec
	feedLatency   prometheus.Histogram
	rejected      *prometheus.CounterVec
	eventsServed  prometheus.Gauge
	aggregatePnc  prometheus.Counter
	probeOutcomes *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dozers_feed_fetch_total",
			Help: "Calendar feed fetches by result.",
		}, []string{"result"}),
		feedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dozers_feed_fetch_duration_seconds",
			Help:    "Calendar feed fetch latency.",
			Buckets: prometheus.DefBuckets,
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dozers_feed_entries_rejected_total",
			Help: "Feed entries kept off the public calendar, by reason.",
		}, []string{"reason"}),
		eventsServed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dozers_events_served",
			Help: "Number of events in the last aggregated list.",
		}),
		aggregatePnc: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dozers_aggregate_panics_total",
			Help: "Recovered panics in the event aggregation pipeline.",
		}),
		probeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dozers_feed_probe_total",
			Help: "Scheduled feed health probes by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.feedFetch,
		c.feedLatency,
		c.rejected,
		c.eventsServed,
		c.aggregatePnc,
		c.probeOutcomes,
	)
	return c
}

func (c *Collector) RecordFeedFetch(result string, d time.Duration) {
	c.feedFetch.WithLabelValues(result).Inc()
	c.feedLatency.Observe(d.Seconds())
}

func (c *Collector) RecordRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordEventsServed(n int) {
	c.eventsServed.Set(float64(n))
}

func (c *Collector) RecordAggregatePanic() {
	c.aggregatePnc.Inc()
}

func (c *Collector) RecordProbe(result string) {
	c.probeOutcomes.WithLabelValues(result).Inc()
}

// Nop discards everything. Used when metrics are disabled and in tests.
type Nop struct{}

func (Nop) RecordFeedFetch(string, time.Duration) {}
func (Nop) RecordRejected(string)                 {}
func (Nop) RecordEventsServed(int)                {}
func (Nop) RecordAggregatePanic()                 {}
func (Nop) RecordProbe(string)                    {}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

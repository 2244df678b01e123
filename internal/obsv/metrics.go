// Package obsv exposes the pipeline's Prometheus metrics. It replaces
// a hand-rolled counters map with the ecosystem client so /metrics is
// a standard scrape target.
package obsv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every counter/histogram the worker pool and
// aggregator touch.
type Metrics struct {
	EventsProcessed     *prometheus.CounterVec
	DrainPasses         *prometheus.CounterVec
	DrainPassEvents     prometheus.Histogram
	EventLogPurged      prometheus.Counter
	NotificationsPurged prometheus.Counter
	WakeReceived        prometheus.Counter
}

// New registers and returns a fresh Metrics set against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_events_processed_total",
			Help: "Events merged into a notification slot or skipped, by outcome.",
		}, []string{"outcome"}),
		DrainPasses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_drain_passes_total",
			Help: "Drain passes completed, by whether they yielded events.",
		}, []string{"result"}),
		DrainPassEvents: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "notification_drain_pass_events",
			Help:    "Number of events fetched per non-empty drain pass.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		EventLogPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "notification_event_log_purged_total",
			Help: "Rows deleted from the event log by retention purge.",
		}),
		NotificationsPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "notification_slots_purged_total",
			Help: "Rows deleted from the notification table by retention purge.",
		}),
		WakeReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "notification_wake_received_total",
			Help: "Wake hints received across all worker subscriptions.",
		}),
	}
}

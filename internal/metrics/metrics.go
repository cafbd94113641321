// Package metrics defines the Prometheus collectors for the coordination
// pipeline. One Metrics value is shared by the gateway, the queue, and the
// processing workers.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all Prometheus metrics for the Drey pipeline.
type Metrics struct {
	// Ingestion gateway
	EventsReceived *prometheus.CounterVec // result: accepted|dropped|duplicate|unauthorized|challenge
	QueueDropped   prometheus.Counter
	QueueDepth     *prometheus.GaugeVec // partition

	// Processing workers
	EventsProcessed    *prometheus.CounterVec // outcome: ok|failed
	Transitions        *prometheus.CounterVec // to_state
	Decisions          *prometheus.CounterVec // action
	Gaps               *prometheus.CounterVec // gap_type
	ExtractionFailures prometheus.Counter
	ProcessingDuration prometheus.Histogram
}

// New creates the pipeline metrics and registers them with the given
// registerer. Pass prometheus.DefaultRegisterer in production and a fresh
// registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drey_events_received_total",
			Help: "Webhook events received by the ingestion gateway, by result",
		}, []string{"result"}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drey_queue_dropped_total",
			Help: "Canonical events dropped because a queue partition was full",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drey_queue_depth",
			Help: "Buffered canonical events per queue partition",
		}, []string{"partition"}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drey_events_processed_total",
			Help: "Canonical events completed by processing workers, by outcome",
		}, []string{"outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drey_state_transitions_total",
			Help: "Successful conversation state transitions, by target state",
		}, []string{"to_state"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drey_decisions_total",
			Help: "Coordination decisions emitted, by action",
		}, []string{"action"}),
		Gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drey_gaps_total",
			Help: "Communication gaps detected, by type",
		}, []string{"gap_type"}),
		ExtractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drey_extraction_failures_total",
			Help: "Signal extraction calls that failed or timed out and fell back to the default signal",
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drey_processing_seconds",
			Help:    "Wall time of one event's processing unit of work",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EventsReceived, m.QueueDropped, m.QueueDepth,
		m.EventsProcessed, m.Transitions, m.Decisions, m.Gaps,
		m.ExtractionFailures, m.ProcessingDuration,
	)
	return m
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "jan"
	subsystem = "support_chat_api"
)

// Support-Chat-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Reconciliation outcomes
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconciliations_total",
			Help:      "Reconciliation calls by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_duration_seconds",
			Help:      "Reconciliation transaction duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
	)

	MergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "merges_total",
			Help:      "Split-brain conversation merges",
		},
	)

	MergedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "merged_messages_total",
			Help:      "Messages moved by conversation merges",
		},
	)

	IdentityConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "identity_conflicts_total",
			Help:      "Reconciliations that failed with an identity conflict after retry",
		},
	)

	// Live transport
	PublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transport_publish_failures_total",
			Help:      "Live publishes that failed after the message was stored",
		},
		[]string{"kind"},
	)

	DuplicatesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transport_duplicates_dropped_total",
			Help:      "Inbound transport events dropped as duplicates",
		},
	)

	InboundDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inbound_deliveries_total",
			Help:      "Inbound transport events by reconciliation outcome",
		},
		[]string{"outcome"},
	)

	InboundAcksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inbound_acks_total",
			Help:      "Inbound transport events acknowledged or returned by workers",
		},
		[]string{"result"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "websocket_connections",
			Help:      "Open widget websocket connections",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordInbound records the reconciliation outcome of an inbound transport event
func RecordInbound(outcome string) {
	InboundDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordInboundAck records whether a worker acked or nacked an inbound event
func RecordInboundAck(result string) {
	InboundAcksTotal.WithLabelValues(result).Inc()
}

// WebsocketOpened increments the open connection gauge
func WebsocketOpened() {
	WebsocketConnections.Inc()
}

// WebsocketClosed decrements the open connection gauge
func WebsocketClosed() {
	WebsocketConnections.Dec()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request counter
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP request duration histogram
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// Engine operation counter
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_operations_total",
			Help: "Total number of engine operations",
		},
		[]string{"operation", "result"}, // result: "ok", "error"
	)

	// Decision counter by verdict
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_decisions_total",
			Help: "Total number of recorded review decisions",
		},
		[]string{"verdict"},
	)

	// Escalations fired
	EscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docflow_escalations_total",
			Help: "Total number of escalations fired",
		},
	)

	// Escalations suppressed by the depth cap
	EscalationsCappedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docflow_escalations_capped_total",
			Help: "Total number of escalation attempts suppressed by the depth cap",
		},
	)

	// Notification events emitted
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_notifications_total",
			Help: "Total number of notification events recorded",
		},
		[]string{"event_type"},
	)
)

// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxidocs_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taxidocs_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taxidocs_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)

	// DocumentEvents counts ledger appends by event (submitted, approved, ...).
	DocumentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxidocs_document_events_total",
			Help: "Document ledger entries appended, by event and category.",
		},
		[]string{"event", "category"},
	)

	StaleWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taxidocs_document_stale_writes_total",
			Help: "Document writes rejected because the caller's version was stale.",
		},
	)

	RemindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxidocs_reminders_total",
			Help: "Reminder outcomes: queued, duplicate, dropped, sent, failed.",
		},
		[]string{"outcome"},
	)

	ReminderQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taxidocs_reminder_queue_depth",
			Help: "Reminders waiting for a dispatcher worker.",
		},
	)

	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxidocs_onboarding_stage_transitions_total",
			Help: "Onboarding sessions entering a stage.",
		},
		[]string{"stage"},
	)

	BatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxidocs_onboarding_batch_items_total",
			Help: "Stage batch document uploads by stage and result.",
		},
		[]string{"stage", "result"},
	)
)

// PrometheusMiddleware records request count and latency per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

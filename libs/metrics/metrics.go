package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "staffsync"

// Registry holds every metric exported on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and status code",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	// SagaRuns counts assignment saga runs by final status.
	SagaRuns = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_runs_total",
			Help:      "Assignment saga runs by final status",
		},
		[]string{"status"},
	)

	EventsDispatched = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Domain events dispatched to registered handlers",
		},
		[]string{"event_type", "outcome"},
	)

	EventsDuplicate = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_duplicate_total",
			Help:      "Deliveries skipped because the event id was already processed",
		},
		[]string{"event_type"},
	)

	OutboxPublished = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events written to Kafka",
		},
		[]string{"event_type"},
	)

	OutboxPending = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_last_batch_size",
			Help:      "Number of outbox rows picked up by the last publish batch",
		},
	)
)

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

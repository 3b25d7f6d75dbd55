// Package metrics holds the Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Messages seen and inserted by the ingestor.
	IngestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_ingest_messages_total",
			Help: "Messages handled by the ingestor",
		},
		[]string{"result"}, // inserted, duplicate, bad_date
	)

	IngestCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_ingest_cycles_total",
			Help: "Completed ingest poll cycles",
		},
		[]string{"status"}, // success, provider_error, store_error
	)

	// Unix time of the last completed poll.
	LastPoll = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assist_ingest_last_poll_timestamp_seconds",
			Help: "Unix time of the last completed ingest poll",
		},
	)

	AnalyzedEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_analyzed_emails_total",
			Help: "Pending records handled by the analyzer",
		},
		[]string{"result"}, // processed, failed, fallback, skipped
	)

	ModelCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assist_model_call_latency_ms",
			Help:    "Language model call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"op", "status"},
	)

	PendingEmails = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assist_pending_emails",
			Help: "Pending records seen at the start of the last analyzer pass",
		},
	)
)

func RecordIngest(result string, n int) {
	if n > 0 {
		IngestMessages.WithLabelValues(result).Add(float64(n))
	}
}

func RecordIngestCycle(status string, at time.Time) {
	IngestCycles.WithLabelValues(status).Inc()
	if status == "success" {
		LastPoll.Set(float64(at.Unix()))
	}
}

func RecordAnalyzed(result string) {
	AnalyzedEmails.WithLabelValues(result).Inc()
}

// RecordModelCall records one language model request.
func RecordModelCall(op, status string, duration time.Duration) {
	ModelCallLatency.WithLabelValues(op, status).Observe(float64(duration.Milliseconds()))
}

func SetPending(n int) {
	PendingEmails.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

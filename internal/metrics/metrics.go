// Package metrics exposes Prometheus instrumentation for the link lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors incremented by the service and janitor.
type Metrics struct {
	registry *prometheus.Registry

	LinksCreated    prometheus.Counter
	LinksConsumed   prometheus.Counter
	LinksExpired    prometheus.Counter
	LinksExhausted  prometheus.Counter
	UploadFailures  prometheus.Counter
	ConsumeFailures prometheus.Counter
	CleanupFailures prometheus.Counter
	JanitorSwept    prometheus.Counter
	OrphansRemoved  prometheus.Counter
	UploadBytes     prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		LinksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_links_created_total",
			Help: "Links successfully created.",
		}),
		LinksConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_links_consumed_total",
			Help: "Successful downloads served.",
		}),
		LinksExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_links_expired_total",
			Help: "Consume attempts denied because the link had expired.",
		}),
		LinksExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_links_exhausted_total",
			Help: "Consume attempts denied because the download quota was spent.",
		}),
		UploadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_upload_failures_total",
			Help: "Uploads that failed after validation.",
		}),
		ConsumeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_consume_failures_total",
			Help: "Consume attempts that failed with a system fault.",
		}),
		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_cleanup_failures_total",
			Help: "Best-effort cleanup deletes that reported an error.",
		}),
		JanitorSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_janitor_swept_total",
			Help: "Expired links removed by the janitor.",
		}),
		OrphansRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealbox_janitor_orphans_removed_total",
			Help: "Orphaned blobs removed during reconciliation.",
		}),
		UploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sealbox_upload_bytes",
			Help:    "Size distribution of uploaded payloads.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for asset processing.
type Metrics struct {
	ThumbnailsTotal   *prometheus.CounterVec
	ThumbnailDuration prometheus.Histogram
	DownloadsTotal    *prometheus.CounterVec
	RemovalsTotal     *prometheus.CounterVec
	JobsTotal         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg. Pass a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ThumbnailsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assets_thumbnails_total",
				Help: "Thumbnails generated",
			},
			[]string{"mode", "result"},
		),

		ThumbnailDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "assets_thumbnail_duration_seconds",
				Help:    "Decode, resize and write latency",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),

		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assets_downloads_total",
				Help: "Remote file downloads",
			},
			[]string{"result"},
		),

		RemovalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assets_removals_total",
				Help: "Asset deletions",
			},
			[]string{"result"},
		),

		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assets_jobs_total",
				Help: "Queue jobs handled",
			},
			[]string{"pattern", "result"},
		),

		gatherer: reg,
	}
}

// RecordThumbnail counts one Generate call.
func (m *Metrics) RecordThumbnail(passThrough bool, result string, durationSeconds float64) {
	if m == nil {
		return
	}
	mode := "crop"
	if passThrough {
		mode = "passthrough"
	}
	m.ThumbnailsTotal.WithLabelValues(mode, result).Inc()
	m.ThumbnailDuration.Observe(durationSeconds)
}

// RecordDownload counts one remote fetch.
func (m *Metrics) RecordDownload(result string) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(result).Inc()
}

// RecordRemoval counts one asset deletion.
func (m *Metrics) RecordRemoval(result string) {
	if m == nil {
		return
	}
	m.RemovalsTotal.WithLabelValues(result).Inc()
}

// RecordJob counts one queue message.
func (m *Metrics) RecordJob(pattern, result string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(pattern, result).Inc()
}

// Handler exposes the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

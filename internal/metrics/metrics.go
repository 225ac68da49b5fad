// Package metrics records pipeline counters on a private Prometheus registry.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/chart"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	Registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	chartRequests  *prometheus.CounterVec
	profileSeconds prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datalens_ingest_total",
			Help: "Datasets ingested successfully, by resolved format.",
		}, []string{"format"}),
		ingestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datalens_ingest_errors_total",
			Help: "Failed ingestions, by error kind.",
		}, []string{"kind"}),
		chartRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datalens_chart_requests_total",
			Help: "Chart requests, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		profileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "datalens_profile_seconds",
			Help:    "Time spent profiling a dataset.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.Registry.MustRegister(m.ingestTotal, m.ingestErrors, m.chartRequests, m.profileSeconds)
	return m
}

// Ingested counts a successful ingestion.
func (m *Metrics) Ingested(f ingest.Format) {
	m.ingestTotal.WithLabelValues(string(f)).Inc()
}

// IngestFailed counts a failed ingestion under the kind of err.
func (m *Metrics) IngestFailed(err error) {
	m.ingestErrors.WithLabelValues(ErrorKind(err)).Inc()
}

// ChartRequested counts a chart resolution attempt.
func (m *Metrics) ChartRequested(k chart.Kind, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.As(err, new(*chart.IncompatibleColumnError)):
		outcome = "incompatible"
	default:
		outcome = "invalid"
	}
	m.chartRequests.WithLabelValues(string(k), outcome).Inc()
}

// ObserveProfile records how long profiling took since start.
func (m *Metrics) ObserveProfile(start time.Time) {
	m.profileSeconds.Observe(time.Since(start).Seconds())
}

// ErrorKind names the ingestion error class of err.
func ErrorKind(err error) string {
	switch {
	case errors.As(err, new(*ingest.FormatError)):
		return "format"
	case errors.As(err, new(*ingest.EncodingError)):
		return "encoding"
	case errors.As(err, new(*ingest.EmptyInputError)):
		return "empty"
	}
	return "other"
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

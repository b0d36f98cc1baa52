// Package metrics provides Prometheus metrics for metaedit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so core packages can run without a registry.
type Metrics struct {
	// Index metrics
	IndexBuildsTotal    *prometheus.CounterVec
	IndexBuildDuration  prometheus.Histogram
	PhotosIndexed       prometheus.Gauge
	DecodeFailuresTotal prometheus.Counter

	// Filter metrics
	FilterEvaluationsTotal prometheus.Counter
	FilterMatches          prometheus.Gauge

	// Edit metrics
	EncodesTotal *prometheus.CounterVec

	// Export metrics
	ExportsTotal       *prometheus.CounterVec
	ExportedFilesTotal prometheus.Counter
	ExportRenamedTotal prometheus.Counter
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	m := &Metrics{}

	m.IndexBuildsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaedit_index_builds_total",
			Help: "Total number of index builds by outcome",
		},
		[]string{"status"},
	)

	m.IndexBuildDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "metaedit_index_build_duration_seconds",
			Help:    "Duration of index builds in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	m.PhotosIndexed = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "metaedit_photos_indexed",
			Help: "Number of photos in the current index",
		},
	)

	m.DecodeFailuresTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "metaedit_decode_failures_total",
			Help: "Total number of photos skipped because they could not be decoded",
		},
	)

	m.FilterEvaluationsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "metaedit_filter_evaluations_total",
			Help: "Total number of filter evaluations",
		},
	)

	m.FilterMatches = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "metaedit_filter_matches",
			Help: "Number of photos matched by the last evaluation",
		},
	)

	m.EncodesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaedit_encodes_total",
			Help: "Total number of metadata writes by outcome",
		},
		[]string{"status"},
	)

	m.ExportsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaedit_exports_total",
			Help: "Total number of exports by outcome",
		},
		[]string{"status"},
	)

	m.ExportedFilesTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "metaedit_exported_files_total",
			Help: "Total number of files copied by exports",
		},
	)

	m.ExportRenamedTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "metaedit_export_renamed_total",
			Help: "Total number of exported files renamed to avoid a name collision",
		},
	)

	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordBuild records a finished index build.
func (m *Metrics) RecordBuild(indexed, failed int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.IndexBuildsTotal.WithLabelValues(status(err)).Inc()
	m.IndexBuildDuration.Observe(duration.Seconds())
	m.DecodeFailuresTotal.Add(float64(failed))
	if err == nil {
		m.PhotosIndexed.Set(float64(indexed))
	}
}

// SetIndexed sets the current index size.
func (m *Metrics) SetIndexed(n int) {
	if m == nil {
		return
	}
	m.PhotosIndexed.Set(float64(n))
}

// RecordEvaluation records one filter evaluation and its match count.
func (m *Metrics) RecordEvaluation(matches int) {
	if m == nil {
		return
	}
	m.FilterEvaluationsTotal.Inc()
	m.FilterMatches.Set(float64(matches))
}

// RecordEncode records one metadata write.
func (m *Metrics) RecordEncode(err error) {
	if m == nil {
		return
	}
	m.EncodesTotal.WithLabelValues(status(err)).Inc()
}

// RecordExport records one export run.
func (m *Metrics) RecordExport(copied, renamed int, err error) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(status(err)).Inc()
	m.ExportedFilesTotal.Add(float64(copied))
	m.ExportRenamedTotal.Add(float64(renamed))
}

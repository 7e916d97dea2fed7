// Package metrics collects per-run export metrics and writes them in the
// node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hrexport/internal/zones"
)

const namespace = "hrexport"

// RunMetrics holds the metrics of a single export run. A nil *RunMetrics
// is valid and records nothing.
type RunMetrics struct {
	registry      *prometheus.Registry
	samples       prometheus.Gauge
	classified    prometheus.Gauge
	zoneFraction  *prometheus.GaugeVec
	fetchDuration *prometheus.HistogramVec
	filesWritten  prometheus.Counter
	lastExport    prometheus.Gauge
}

// New creates a RunMetrics backed by its own registry
func New() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Heart rate samples returned for the exported day, including null readings.",
		}),
		classified: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples_classified",
			Help:      "Heart rate samples with a value that were assigned a zone.",
		}),
		zoneFraction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_fraction",
			Help:      "Fraction of classified samples in each heart rate zone.",
		}, []string{"zone"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of Garmin Connect fetches by dataset.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"dataset"}),
		filesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Export files written by the run.",
		}),
		lastExport: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_export_timestamp_seconds",
			Help:      "Unix time the run finished exporting.",
		}),
	}

	m.registry.MustRegister(
		m.samples,
		m.classified,
		m.zoneFraction,
		m.fetchDuration,
		m.filesWritten,
		m.lastExport,
	)
	return m
}

// ObserveFetch records how long fetching a dataset took
func (m *RunMetrics) ObserveFetch(dataset string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(dataset).Observe(d.Seconds())
}

// SetSamples records the day's sample counts
func (m *RunMetrics) SetSamples(total, classified int) {
	if m == nil {
		return
	}
	m.samples.Set(float64(total))
	m.classified.Set(float64(classified))
}

// SetDistribution records each zone's fraction
func (m *RunMetrics) SetDistribution(d zones.Distribution) {
	if m == nil {
		return
	}
	for _, s := range d.Shares() {
		m.zoneFraction.WithLabelValues(s.Zone).Set(s.Fraction)
	}
}

// FileWritten counts an export file
func (m *RunMetrics) FileWritten() {
	if m == nil {
		return
	}
	m.filesWritten.Inc()
}

// MarkExported records the export completion time
func (m *RunMetrics) MarkExported(t time.Time) {
	if m == nil {
		return
	}
	m.lastExport.Set(float64(t.Unix()))
}

// WriteTextfile writes the run's metrics to path atomically
func (m *RunMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

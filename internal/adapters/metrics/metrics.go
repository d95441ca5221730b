// Package metrics records scan statistics on a private Prometheus registry.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

const namespace = "dicomity"

// Recorder implements ports.ScanMetrics
type Recorder struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	duplicates   prometheus.Counter
	groupErrors  prometheus.Counter
	scans        *prometheus.CounterVec
	scanDuration prometheus.Histogram
	series       *prometheus.GaugeVec

	cacheEntries prometheus.Gauge
	cacheEvents  *prometheus.GaugeVec
}

// Ensure Recorder implements ScanMetrics
var _ ports.ScanMetrics = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed, by outcome",
		}, []string{"outcome"}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_instances_total",
			Help:      "Files excluded for repeating a SOP instance UID",
		}),
		groupErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_errors_total",
			Help:      "Groups that could not be ordered",
		}),
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans and updates run",
		}, []string{"cancelled"}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a scan",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		series: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series",
			Help:      "Series in the registry, by ordering method and confidence",
		}, []string{"method", "confident"}),
		cacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Headers held by the cache",
		}),
		cacheEvents: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events",
			Help:      "Cache counters since start, by kind",
		}, []string{"kind"}),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordScan adds the counts of one scan report
func (r *Recorder) RecordScan(report *domain.ScanReport) {
	r.files.WithLabelValues(domain.OutcomeParsed.String()).Add(float64(report.Parsed))
	r.files.WithLabelValues(domain.OutcomeCached.String()).Add(float64(report.CacheHits))
	r.files.WithLabelValues(domain.OutcomeFailed.String()).Add(float64(len(report.Failures)))
	r.duplicates.Add(float64(len(report.Duplicates)))
	r.groupErrors.Add(float64(len(report.GroupErrors)))
	r.scans.WithLabelValues(strconv.FormatBool(report.Cancelled)).Inc()
	r.scanDuration.Observe(report.Duration.Seconds())
}

// RecordCache publishes a cache snapshot
func (r *Recorder) RecordCache(stats domain.CacheStats) {
	r.cacheEntries.Set(float64(stats.Entries))
	r.cacheEvents.WithLabelValues("hit").Set(float64(stats.Hits))
	r.cacheEvents.WithLabelValues("miss").Set(float64(stats.Misses))
	r.cacheEvents.WithLabelValues("parse").Set(float64(stats.Parses))
	r.cacheEvents.WithLabelValues("failure").Set(float64(stats.Failures))
}

// RecordSeries replaces the per-method series gauge with the given series
func (r *Recorder) RecordSeries(series []domain.SeriesView) {
	r.series.Reset()
	for _, s := range series {
		r.series.WithLabelValues(s.Method.String(), strconv.FormatBool(s.Confident)).Inc()
	}
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

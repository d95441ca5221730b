package ports

import "github.com/CodeChoreography/dicomity/internal/domain"

// ScanMetrics records scan, cache and registry statistics.
type ScanMetrics interface {
	RecordScan(report *domain.ScanReport)
	RecordCache(stats domain.CacheStats)
	RecordSeries(series []domain.SeriesView)
}

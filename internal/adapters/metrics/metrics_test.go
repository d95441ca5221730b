package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

func TestRecorder_RecordScan(t *testing.T) {
	r := NewRecorder()
	report := &domain.ScanReport{
		Parsed:     3,
		CacheHits:  2,
		Failures:   []domain.FileFailure{{Path: "/x"}},
		Duplicates: []*domain.DuplicateInstanceError{{Path: "/y"}},
		Duration:   250 * time.Millisecond,
	}

	r.RecordScan(report)
	r.RecordScan(report)

	assert.Equal(t, 6.0, testutil.ToFloat64(r.files.WithLabelValues("parsed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.files.WithLabelValues("cached")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.files.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.duplicates))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scans.WithLabelValues("false")))
}

func TestRecorder_RecordCacheAndSeries(t *testing.T) {
	r := NewRecorder()

	r.RecordCache(domain.CacheStats{Entries: 10, Hits: 7, Misses: 3, Parses: 3, Failures: 1})
	r.RecordSeries([]domain.SeriesView{
		{Method: domain.MethodSpatial, Confident: true},
		{Method: domain.MethodSpatial, Confident: true},
		{Method: domain.MethodFilename},
	})
	r.RecordSeries([]domain.SeriesView{{Method: domain.MethodSpatial, Confident: true}})

	assert.Equal(t, 10.0, testutil.ToFloat64(r.cacheEntries))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.series.WithLabelValues("spatial", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.series))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RecordScan(&domain.ScanReport{Parsed: 1})
	path := filepath.Join(t.TempDir(), "dicomity.prom")

	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dicomity_files_total{outcome="parsed"} 1`)
}

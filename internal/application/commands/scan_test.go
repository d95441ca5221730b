package commands

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/CodeChoreography/dicomity/internal/adapters/memory"
	"github.com/CodeChoreography/dicomity/internal/application"
	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

var stamp = domain.Fingerprint{Size: 2048, ModTime: 1}

func testOptions(t *testing.T) ScanOptions {
	opts := DefaultScanOptions()
	opts.Workers = 4
	opts.Logger = zaptest.NewLogger(t)
	return opts
}

// addSeries puts n slices of series uid under dir, one per z in zs.
func addSeries(lib *memory.Library, dir, uid string, zs ...float64) []string {
	var paths []string
	for i, z := range zs {
		p := fmt.Sprintf("%s/%d.dcm", dir, i)
		lib.Put(p, stamp, memory.SliceTags(uid, fmt.Sprintf("%s.%d", uid, i), z))
		paths = append(paths, p)
	}
	return paths
}

func TestScan_SplitsSeriesOnPixelSpacing(t *testing.T) {
	lib := memory.NewLibrary()
	paths := addSeries(lib, "/d", "1.2.3", 0, 1, 2)
	for i := range 3 {
		p := fmt.Sprintf("/d/wide%d.dcm", i)
		tags := memory.SliceTags("1.2.3", fmt.Sprintf("1.2.3.w%d", i), float64(i))
		tags[domain.KeywordPixelSpacing] = []string{`2.0\2.0`}
		lib.Put(p, stamp, tags)
		paths = append(paths, p)
	}
	cache := application.NewHeaderCache(lib, lib)

	reg, report, err := NewScanCommand(cache, paths, testOptions(t)).Execute(context.Background())
	require.NoError(t, err)

	series := reg.Series()
	require.Len(t, series, 2)
	for _, s := range series {
		assert.Equal(t, "1.2.3", s.Key.SeriesUID)
		assert.Equal(t, 3, s.InstanceCount)
	}
	assert.Len(t, report.SeriesAffected, 2)
	assert.Equal(t, 6, report.Parsed)
}

func TestScan_OrdersSpatially(t *testing.T) {
	lib := memory.NewLibrary()
	paths := addSeries(lib, "/d", "1.2.3", 30, 10, 20, 0, 40)
	cache := application.NewHeaderCache(lib, lib)

	reg, _, err := NewScanCommand(cache, paths, testOptions(t)).Execute(context.Background())
	require.NoError(t, err)

	series := reg.Series()
	require.Len(t, series, 1)
	ordering := series[0].Ordering()
	var zs []float64
	for _, inst := range ordering.Instances {
		zs = append(zs, inst.Header.ImagePosition.Z)
	}
	assert.Equal(t, []float64{0, 10, 20, 30, 40}, zs)
	assert.Equal(t, domain.MethodSpatial, ordering.Method)
	assert.True(t, ordering.Confident)
}

func TestScan_FallsBackToInstanceNumber(t *testing.T) {
	lib := memory.NewLibrary()
	var paths []string
	for i, n := range []int{3, 1, 2} {
		p := fmt.Sprintf("/d/%d.dcm", i)
		tags := memory.SliceTags("1.2.3", fmt.Sprintf("1.2.3.%d", i), 0)
		delete(tags, domain.KeywordImagePositionPatient)
		tags[domain.KeywordInstanceNumber] = []string{fmt.Sprint(n)}
		lib.Put(p, stamp, tags)
		paths = append(paths, p)
	}
	cache := application.NewHeaderCache(lib, lib)

	reg, _, err := NewScanCommand(cache, paths, testOptions(t)).Execute(context.Background())
	require.NoError(t, err)

	refs := reg.Series()[0].OrderedInstances()
	require.Len(t, refs, 3)
	assert.Equal(t, []string{"/d/1.dcm", "/d/2.dcm", "/d/0.dcm"}, []string{refs[0].Path, refs[1].Path, refs[2].Path})
	assert.Equal(t, domain.MethodInstanceNumber, refs[0].Method)
	assert.False(t, refs[0].Confident)
}

func TestScan_DuplicateSOPInstance(t *testing.T) {
	lib := memory.NewLibrary()
	lib.Put("/d/a.dcm", stamp, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	lib.Put("/d/b.dcm", stamp, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	cache := application.NewHeaderCache(lib, lib)

	reg, report, err := NewScanCommand(cache, []string{"/d/b.dcm", "/d/a.dcm"}, testOptions(t)).Execute(context.Background())
	require.NoError(t, err)

	refs := reg.Series()[0].OrderedInstances()
	require.Len(t, refs, 1)
	assert.Equal(t, "/d/a.dcm", refs[0].Path)
	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, "/d/b.dcm", report.Duplicates[0].Path)
}

func TestScan_UnreadableFilesAreReportedNotFatal(t *testing.T) {
	lib := memory.NewLibrary()
	paths := addSeries(lib, "/d", "1.2.3", 0, 1)
	lib.PutBroken("/d/notes.txt", stamp, ports.ErrNotDicom)
	paths = append(paths, "/d/notes.txt", "/d/gone.dcm")
	cache := application.NewHeaderCache(lib, lib)

	reg, report, err := NewScanCommand(cache, paths, testOptions(t)).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 4, report.FilesTotal)
	assert.Equal(t, 4, report.FilesProcessed)
	assert.ElementsMatch(t, []string{"/d/notes.txt", "/d/gone.dcm"}, report.FailedPaths())
	assert.NotEmpty(t, report.ID)
}

func TestScan_WarmCacheIsIdempotent(t *testing.T) {
	lib := memory.NewLibrary()
	paths := addSeries(lib, "/a", "1.2.3", 0, 1, 2)
	paths = append(paths, addSeries(lib, "/b", "1.2.4", 5, 3)...)
	cache := application.NewHeaderCache(lib, lib)
	ctx := context.Background()

	first, _, err := NewScanCommand(cache, paths, testOptions(t)).Execute(ctx)
	require.NoError(t, err)
	parses := lib.Parses()

	second, report, err := NewScanCommand(cache, paths, testOptions(t)).Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, parses, lib.Parses())
	assert.Zero(t, report.Parsed)
	assert.Equal(t, len(paths), report.CacheHits)
	assert.Equal(t, first.Series(), second.Series())
}

func TestScan_InputOrderDoesNotMatter(t *testing.T) {
	lib := memory.NewLibrary()
	paths := addSeries(lib, "/a", "1.2.3", 4, 0, 2, 2, 1, 3)
	reversed := make([]string, len(paths))
	for i, p := range paths {
		reversed[len(paths)-1-i] = p
	}

	a, _, err := NewScanCommand(application.NewHeaderCache(lib, lib), paths, testOptions(t)).Execute(context.Background())
	require.NoError(t, err)
	b, _, err := NewScanCommand(application.NewHeaderCache(lib, lib), reversed, testOptions(t)).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Series()[0].OrderedInstances(), b.Series()[0].OrderedInstances())
}

func TestUpdate_OnlyTouchedSeriesChange(t *testing.T) {
	lib := memory.NewLibrary()
	paths := addSeries(lib, "/a", "1.2.3", 0, 1, 2)
	paths = append(paths, addSeries(lib, "/b", "1.2.4", 0, 1)...)
	cache := application.NewHeaderCache(lib, lib)
	ctx := context.Background()

	reg, _, err := NewScanCommand(cache, paths, testOptions(t)).Execute(ctx)
	require.NoError(t, err)
	before := reg.Series()

	lib.Put("/b/2.dcm", stamp, memory.SliceTags("1.2.4", "1.2.4.2", 2))
	report, err := NewUpdateCommand(cache, reg, []string{"/b/2.dcm"}, testOptions(t)).Execute(ctx)
	require.NoError(t, err)

	after := reg.Series()
	require.Len(t, after, 2)
	require.Len(t, report.SeriesAffected, 1)
	assert.Equal(t, "1.2.4", report.SeriesAffected[0].SeriesUID)
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, 3, after[1].InstanceCount)
}

func TestUpdate_VanishedFilesLeave(t *testing.T) {
	lib := memory.NewLibrary()
	paths := addSeries(lib, "/a", "1.2.3", 0, 1)
	paths = append(paths, addSeries(lib, "/b", "1.2.4", 0)...)
	cache := application.NewHeaderCache(lib, lib)
	ctx := context.Background()

	reg, _, err := NewScanCommand(cache, paths, testOptions(t)).Execute(ctx)
	require.NoError(t, err)

	lib.Delete("/b/0.dcm")
	cmd := NewUpdateCommand(cache, reg, nil, testOptions(t))
	cmd.Vanished = []string{"/b/0.dcm"}
	report, err := cmd.Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
	require.Len(t, report.SeriesRemoved, 1)
	assert.Equal(t, "1.2.4", report.SeriesRemoved[0].SeriesUID)
}

func TestUpdate_KeepsFileWhenAnotherCallerCancels(t *testing.T) {
	lib := memory.NewLibrary()
	paths := addSeries(lib, "/d", "1.2.3", 0, 1)
	cache := application.NewHeaderCache(lib, lib)

	reg, _, err := NewScanCommand(cache, paths, testOptions(t)).Execute(context.Background())
	require.NoError(t, err)
	lib.Touch("/d/1.dcm")
	parses := lib.Parses()
	release := lib.Hold()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	other := make(chan error, 1)
	go func() {
		_, err := cache.GetOrParse(ctx, "/d/1.dcm")
		other <- err
	}()
	require.Eventually(t, func() bool { return lib.Parses() == parses+1 }, time.Second, time.Millisecond)

	done := make(chan *domain.ScanReport, 1)
	go func() {
		report, err := NewUpdateCommand(cache, reg, []string{"/d/1.dcm"}, testOptions(t)).Execute(context.Background())
		assert.NoError(t, err)
		done <- report
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	<-other
	release()
	report := <-done

	assert.False(t, report.Cancelled)
	assert.Empty(t, report.Failures)
	assert.Equal(t, paths, reg.Paths())
}

func TestUpdate_RequiresRegistry(t *testing.T) {
	lib := memory.NewLibrary()
	_, err := NewUpdateCommand(application.NewHeaderCache(lib, lib), nil, []string{"/a"}, testOptions(t)).Execute(context.Background())

	var verr *application.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestScan_RejectsEmptyInput(t *testing.T) {
	lib := memory.NewLibrary()
	_, _, err := NewScanCommand(application.NewHeaderCache(lib, lib), nil, testOptions(t)).Execute(context.Background())

	assert.ErrorIs(t, err, application.ErrNoPaths)
}

func TestScan_CancelledReturnsConsistentRegistry(t *testing.T) {
	lib := memory.NewLibrary()
	var paths []string
	for i := range 50 {
		paths = append(paths, addSeries(lib, fmt.Sprintf("/s%d", i), fmt.Sprintf("1.2.%d", i), 0)...)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	parser := &cancellingParser{Library: lib, after: 5, cancel: cancel}
	cache := application.NewHeaderCache(parser, lib)

	opts := testOptions(t)
	opts.Workers = 1
	reg, report, err := NewScanCommand(cache, paths, opts).Execute(ctx)
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Equal(t, 5, report.FilesProcessed)
	assert.Empty(t, report.Failures)
	assert.Equal(t, report.FilesProcessed, reg.Len())
	for _, s := range reg.Series() {
		assert.Len(t, s.OrderedInstances(), 1)
	}
}

// cancellingParser cancels the scan once it has parsed a number of files.
type cancellingParser struct {
	*memory.Library
	after  int64
	count  atomic.Int64
	cancel context.CancelFunc
}

func (p *cancellingParser) Parse(ctx context.Context, path string) (domain.TagValues, error) {
	if p.count.Add(1) == p.after {
		p.cancel()
	}
	return p.Library.Parse(ctx, path)
}

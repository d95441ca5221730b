package application_test

import (
	"context"
	"errors"
	"io/fs"
	"sync"
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

func newCache(t *testing.T, lib *memory.Library) *application.HeaderCache {
	t.Helper()
	return application.NewHeaderCache(lib, lib, application.WithCacheLogger(zaptest.NewLogger(t)))
}

func TestHeaderCache_ParsesOnceWhileUnchanged(t *testing.T) {
	lib := memory.NewLibrary()
	lib.Put("/s/1.dcm", domain.Fingerprint{Size: 10, ModTime: 1}, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	cache := newCache(t, lib)
	ctx := context.Background()

	first, cached, err := cache.Fetch(ctx, "/s/1.dcm")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "1.2.3.1", first.SOPInstanceUID)

	second, cached, err := cache.Fetch(ctx, "/s/1.dcm")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Same(t, first, second)
	assert.Equal(t, 1, lib.Parses())

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestHeaderCache_FingerprintChangeReparses(t *testing.T) {
	lib := memory.NewLibrary()
	lib.Put("/s/1.dcm", domain.Fingerprint{Size: 10, ModTime: 1}, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	cache := newCache(t, lib)
	ctx := context.Background()

	first, err := cache.GetOrParse(ctx, "/s/1.dcm")
	require.NoError(t, err)

	lib.Touch("/s/1.dcm")
	second, err := cache.GetOrParse(ctx, "/s/1.dcm")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, lib.Parses())
	assert.Equal(t, int64(2), second.Fingerprint.ModTime)
}

func TestHeaderCache_SingleFlight(t *testing.T) {
	lib := memory.NewLibrary()
	lib.Put("/s/1.dcm", domain.Fingerprint{Size: 10, ModTime: 1}, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	cache := newCache(t, lib)
	release := lib.Hold()

	const callers = 16
	results := make([]*domain.DicomHeader, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := cache.GetOrParse(context.Background(), "/s/1.dcm")
			assert.NoError(t, err)
			results[i] = h
		}()
	}

	require.Eventually(t, func() bool { return lib.Parses() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, lib.Parses())
	for _, h := range results {
		assert.Same(t, results[0], h)
	}
}

func TestHeaderCache_FailuresAreRemembered(t *testing.T) {
	lib := memory.NewLibrary()
	lib.PutBroken("/s/readme.txt", domain.Fingerprint{Size: 3, ModTime: 1}, ports.ErrNotDicom)
	cache := newCache(t, lib)
	ctx := context.Background()

	_, err := cache.GetOrParse(ctx, "/s/readme.txt")
	var perr *application.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "/s/readme.txt", perr.Path)
	assert.ErrorIs(t, err, ports.ErrNotDicom)
	assert.ErrorIs(t, err, application.ErrParse)

	_, err = cache.GetOrParse(ctx, "/s/readme.txt")
	require.Error(t, err)
	assert.Equal(t, 1, lib.Parses())
	assert.Zero(t, cache.Len())

	lib.Touch("/s/readme.txt")
	_, err = cache.GetOrParse(ctx, "/s/readme.txt")
	require.Error(t, err)
	assert.Equal(t, 2, lib.Parses())
}

func TestHeaderCache_MissingFile(t *testing.T) {
	cache := newCache(t, memory.NewLibrary())

	_, err := cache.GetOrParse(context.Background(), "/nowhere.dcm")

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorIs(t, err, application.ErrParse)
}

func TestHeaderCache_CancelledParseIsNotRemembered(t *testing.T) {
	lib := memory.NewLibrary()
	lib.Put("/s/1.dcm", domain.Fingerprint{Size: 10, ModTime: 1}, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	cache := newCache(t, lib)
	release := lib.Hold()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.GetOrParse(ctx, "/s/1.dcm")
		done <- err
	}()
	require.Eventually(t, func() bool { return lib.Parses() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))
	release()

	h, err := cache.GetOrParse(context.Background(), "/s/1.dcm")
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 2, lib.Parses())
}

func TestHeaderCache_LoadDump(t *testing.T) {
	lib := memory.NewLibrary()
	fp := domain.Fingerprint{Size: 10, ModTime: 1}
	lib.Put("/s/2.dcm", fp, memory.SliceTags("1.2.3", "1.2.3.2", 1))
	lib.Put("/s/1.dcm", fp, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	ctx := context.Background()

	warm := newCache(t, lib)
	for _, p := range []string{"/s/2.dcm", "/s/1.dcm"} {
		_, err := warm.GetOrParse(ctx, p)
		require.NoError(t, err)
	}
	dump := warm.Dump()
	require.Len(t, dump, 2)
	assert.Equal(t, "/s/1.dcm", dump[0].Path)

	cold := newCache(t, lib)
	cold.Load(append(dump, domain.CacheEntry{Path: "/s/empty.dcm"}))
	assert.Equal(t, 2, cold.Len())

	_, cached, err := cold.Fetch(ctx, "/s/1.dcm")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 2, lib.Parses())
}

func TestHeaderCache_Invalidate(t *testing.T) {
	lib := memory.NewLibrary()
	lib.Put("/s/1.dcm", domain.Fingerprint{Size: 10, ModTime: 1}, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	cache := newCache(t, lib)
	ctx := context.Background()

	_, err := cache.GetOrParse(ctx, "/s/1.dcm")
	require.NoError(t, err)
	cache.Invalidate("/s/1.dcm")
	assert.Zero(t, cache.Len())

	_, cached, err := cache.Fetch(ctx, "/s/1.dcm")
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestHeaderCache_Reset(t *testing.T) {
	lib := memory.NewLibrary()
	lib.Put("/s/1.dcm", domain.Fingerprint{Size: 10, ModTime: 1}, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	lib.PutBroken("/s/x.txt", domain.Fingerprint{Size: 1, ModTime: 1}, ports.ErrNotDicom)
	cache := newCache(t, lib)
	ctx := context.Background()

	_, err := cache.GetOrParse(ctx, "/s/1.dcm")
	require.NoError(t, err)
	_, err = cache.GetOrParse(ctx, "/s/x.txt")
	require.Error(t, err)

	cache.Reset()
	assert.Zero(t, cache.Len())
	assert.Empty(t, cache.Dump())

	_, err = cache.GetOrParse(ctx, "/s/x.txt")
	require.Error(t, err)
	assert.Equal(t, 3, lib.Parses())
}

func TestHeaderCache_WaiterOutlivesCancelledParse(t *testing.T) {
	lib := memory.NewLibrary()
	lib.Put("/s/1.dcm", domain.Fingerprint{Size: 10, ModTime: 1}, memory.SliceTags("1.2.3", "1.2.3.1", 0))
	cache := newCache(t, lib)
	release := lib.Hold()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cache.GetOrParse(ctx, "/s/1.dcm")
		first <- err
	}()
	require.Eventually(t, func() bool { return lib.Parses() == 1 }, time.Second, time.Millisecond)

	type result struct {
		h   *domain.DicomHeader
		err error
	}
	second := make(chan result, 1)
	go func() {
		h, err := cache.GetOrParse(context.Background(), "/s/1.dcm")
		second <- result{h, err}
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	release()

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "1.2.3.1", got.h.SOPInstanceUID)
	assert.Equal(t, 1, cache.Len())
}

package wiring

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/CodeChoreography/dicomity/internal/config"
)

func TestRuntime_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(config.New(), writeConfig(t, dir))
	require.NoError(t, err)

	rt, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, rt.Store)
	require.NoError(t, rt.Open())

	data := filepath.Join(dir, "data")
	require.NoError(t, os.Mkdir(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "notes.txt"), []byte("hello"), 0o644))

	report, err := rt.Session.Scan(context.Background(), []string{data}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesProcessed)
	assert.Zero(t, rt.Session.Registry().Len())

	require.NoError(t, rt.Close())
	assert.FileExists(t, filepath.Join(dir, "headers.db"))
	assert.FileExists(t, filepath.Join(dir, "metrics.prom"))
}

func TestRuntime_CacheDisabled(t *testing.T) {
	cfg, err := config.Load(config.New(), writeConfig(t, t.TempDir()))
	require.NoError(t, err)
	cfg.Cache.Enabled = false
	cfg.Metrics.Textfile = ""

	rt, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, rt.Store)
	require.NoError(t, rt.Open())
	require.NoError(t, rt.Close())
}

func TestRuntime_RejectsBadOptions(t *testing.T) {
	cfg, err := config.Load(config.New(), writeConfig(t, t.TempDir()))
	require.NoError(t, err)
	cfg.Ordering.CVThreshold = -1

	_, err = New(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "dicomity.yaml")
	body := "cache:\n  path: " + filepath.Join(dir, "headers.db") + "\nmetrics:\n  textfile: " + filepath.Join(dir, "metrics.prom") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

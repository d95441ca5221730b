// Package wiring assembles the adapters behind a scan session for the
// binaries.
package wiring

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/CodeChoreography/dicomity/internal/adapters/dicomfile"
	"github.com/CodeChoreography/dicomity/internal/adapters/filesystem"
	"github.com/CodeChoreography/dicomity/internal/adapters/metrics"
	"github.com/CodeChoreography/dicomity/internal/adapters/sqlite"
	"github.com/CodeChoreography/dicomity/internal/application"
	"github.com/CodeChoreography/dicomity/internal/application/commands"
	"github.com/CodeChoreography/dicomity/internal/config"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// Runtime is a ready-to-open session with its supporting adapters.
type Runtime struct {
	Config  *config.Config
	Logger  *zap.Logger
	Session *commands.Session
	Metrics *metrics.Recorder
	// Store is nil when the persistent cache is disabled.
	Store *sqlite.Store
}

// New wires the real parser, filesystem and cache store together.
func New(cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	opts := commands.ScanOptions{
		Workers:  cfg.Workers,
		Registry: cfg.RegistryOptions(),
		Logger:   logger,
	}
	if err := application.ValidateOptions(opts.Registry); err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: logger, Metrics: metrics.NewRecorder()}
	opts.Metrics = rt.Metrics

	cache := application.NewHeaderCache(dicomfile.NewParser(), filesystem.Inspector{}, application.WithCacheLogger(logger))

	var store ports.CacheStore
	if cfg.Cache.Enabled {
		rt.Store = sqlite.NewStore(cfg.Cache.Path, logger)
		store = rt.Store
	}
	rt.Session = commands.NewSession(cache, filesystem.NewLister(), store, opts)
	return rt, nil
}

// Open loads the persistent cache.
func (r *Runtime) Open() error {
	return r.Session.Open()
}

// Close saves the cache and writes the metrics textfile when one is
// configured.
func (r *Runtime) Close() error {
	err := r.Session.Close()
	if path := r.Config.Metrics.Textfile; path != "" {
		if werr := r.Metrics.WriteTextfile(path); werr != nil {
			err = errors.Join(err, fmt.Errorf("failed to write metrics: %w", werr))
		}
	}
	return err
}

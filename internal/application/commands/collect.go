package commands

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CodeChoreography/dicomity/internal/application"
	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// ScanOptions configures a scan or an update.
type ScanOptions struct {
	// Workers bounds concurrent header reads; zero means one per CPU.
	Workers  int
	Registry domain.RegistryOptions
	Progress ports.ProgressReporter
	Metrics  ports.ScanMetrics
	Logger   *zap.Logger
}

// DefaultScanOptions returns stock engine settings and a no-op logger.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Registry: domain.RegistryOptions{
			Grouping: domain.DefaultGroupingOptions(),
			Ordering: domain.DefaultOrderingOptions(),
		},
		Logger: zap.NewNop(),
	}
}

func (o ScanOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

type fileResult struct {
	done   bool
	header *domain.DicomHeader
	cached bool
	err    error
}

// collect reads the header of every path on a bounded pool. Results come back
// in natural path order whatever order the workers finish in.
func collect(ctx context.Context, cache *application.HeaderCache, paths []string, opts ScanOptions, report *domain.ScanReport) []*domain.DicomHeader {
	logger := opts.logger()
	report.FilesTotal = len(paths)

	relay := newProgressRelay(opts.Progress, logger)
	relay.TotalKnown(len(paths))

	results := make([]fileResult, len(paths))
	var g errgroup.Group
	g.SetLimit(application.Workers(opts.Workers))
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			relay.FileStarted(path)
			h, cached, err := cache.Fetch(ctx, path)
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			results[i] = fileResult{done: true, header: h, cached: cached, err: err}
			relay.FileCompleted(path, outcomeOf(cached, err), err)
			return nil
		})
	}
	_ = g.Wait()
	relay.Close()

	var headers []*domain.DicomHeader
	for i, r := range results {
		if !r.done {
			continue
		}
		report.FilesProcessed++
		if r.err != nil {
			report.Failures = append(report.Failures, domain.FileFailure{Path: paths[i], Err: r.err})
			logger.Warn("skipping file", zap.String("path", paths[i]), zap.Error(r.err))
			continue
		}
		if r.cached {
			report.CacheHits++
		} else {
			report.Parsed++
		}
		headers = append(headers, r.header)
	}
	report.Cancelled = ctx.Err() != nil
	return headers
}

func outcomeOf(cached bool, err error) domain.FileOutcome {
	switch {
	case errors.Is(err, ports.ErrNotDicom):
		return domain.OutcomeSkipped
	case err != nil:
		return domain.OutcomeFailed
	case cached:
		return domain.OutcomeCached
	default:
		return domain.OutcomeParsed
	}
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return domain.SortNatural(out)
}

// fold merges freshly read headers into a registry.
type fold func(headers []*domain.DicomHeader) *domain.MergeResult

// apply collects headers for paths and folds them into reg. Paths in vanished
// are dropped from reg first.
func apply(ctx context.Context, cache *application.HeaderCache, reg *domain.Registry, paths, vanished []string, opts ScanOptions, merge fold) *domain.ScanReport {
	logger := opts.logger()
	report := &domain.ScanReport{ID: uuid.NewString(), StartedAt: time.Now()}

	var results []*domain.MergeResult
	if len(vanished) > 0 {
		for _, p := range vanished {
			cache.Invalidate(p)
		}
		results = append(results, reg.Remove(vanished))
	}

	headers := collect(ctx, cache, cleanPaths(paths), opts, report)

	// Files that stopped being readable leave the registry too.
	if failed := report.FailedPaths(); len(failed) > 0 {
		results = append(results, reg.Remove(failed))
	}
	results = append(results, merge(headers))
	fillReport(report, results)

	for _, d := range report.Duplicates {
		logger.Info("duplicate instance excluded",
			zap.String("path", d.Path),
			zap.String("kept", d.KeptPath),
			zap.String("sop_instance_uid", d.SOPInstanceUID))
	}
	for _, ge := range report.GroupErrors {
		logger.Error("series skipped", zap.String("series", ge.Key.ID()), zap.Error(ge.Err))
	}
	warnSplits(logger, reg, report.SeriesAffected)

	report.Duration = time.Since(report.StartedAt)
	if opts.Metrics != nil {
		opts.Metrics.RecordScan(report)
		opts.Metrics.RecordCache(cache.Stats())
		opts.Metrics.RecordSeries(reg.Series())
	}

	logger.Info("scan complete",
		zap.String("scan_id", report.ID),
		zap.Int("files", report.FilesTotal),
		zap.Int("processed", report.FilesProcessed),
		zap.Int("parsed", report.Parsed),
		zap.Int("cache_hits", report.CacheHits),
		zap.Int("failures", len(report.Failures)),
		zap.Int("series_affected", len(report.SeriesAffected)),
		zap.Bool("cancelled", report.Cancelled),
		zap.Duration("took", report.Duration))
	return report
}

func fillReport(report *domain.ScanReport, results []*domain.MergeResult) {
	affected := make(map[domain.GroupKey]bool)
	removed := make(map[domain.GroupKey]bool)
	// A primary regrouped twice reports its duplicates twice; keep the last.
	duplicates := make(map[string]*domain.DuplicateInstanceError)
	for _, res := range results {
		for _, d := range res.Duplicates {
			duplicates[d.Path] = d
		}
		report.GroupErrors = append(report.GroupErrors, res.GroupErrors...)
		for _, k := range res.Removed {
			removed[k] = true
			delete(affected, k)
		}
		for _, k := range res.Affected {
			affected[k] = true
			delete(removed, k)
		}
	}
	for _, d := range duplicates {
		report.Duplicates = append(report.Duplicates, d)
	}
	slices.SortFunc(report.Duplicates, func(a, b *domain.DuplicateInstanceError) int {
		return domain.CompareNatural(a.Path, b.Path)
	})
	report.SeriesAffected = sortedKeys(affected)
	report.SeriesRemoved = sortedKeys(removed)
}

func sortedKeys(set map[domain.GroupKey]bool) []domain.GroupKey {
	if len(set) == 0 {
		return nil
	}
	out := make([]domain.GroupKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.SortFunc(out, domain.GroupKey.Compare)
	return out
}

func warnSplits(logger *zap.Logger, reg *domain.Registry, affected []domain.GroupKey) {
	touched := make(map[domain.PrimaryKey]bool, len(affected))
	for _, k := range affected {
		touched[k.Primary()] = true
	}
	warned := make(map[domain.PrimaryKey]bool)
	for _, s := range reg.SplitSeries() {
		primary := s.Key.Primary()
		if !touched[primary] || warned[primary] {
			continue
		}
		warned[primary] = true
		attrs := make([]string, len(s.Split.Attributes))
		for i, a := range s.Split.Attributes {
			attrs[i] = string(a)
		}
		logger.Warn("series split into several groups",
			zap.String("series_uid", primary.SeriesUID),
			zap.Int("groups", s.Split.Siblings),
			zap.Strings("differs_in", attrs))
	}
}

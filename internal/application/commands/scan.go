package commands

import (
	"context"

	"github.com/CodeChoreography/dicomity/internal/application"
	"github.com/CodeChoreography/dicomity/internal/domain"
)

// ScanCommand groups and orders a set of files into a new registry
type ScanCommand struct {
	cache   *application.HeaderCache
	Paths   []string
	Options ScanOptions
}

// NewScanCommand creates a new ScanCommand
func NewScanCommand(cache *application.HeaderCache, paths []string, opts ScanOptions) *ScanCommand {
	return &ScanCommand{
		cache:   cache,
		Paths:   paths,
		Options: opts,
	}
}

// Validate checks the inputs before any file is read
func (c *ScanCommand) Validate() error {
	if err := application.ValidatePaths(c.Paths); err != nil {
		return err
	}
	return application.ValidateOptions(c.Options.Registry)
}

// Execute runs the scan. Unreadable files are recorded in the report and never
// fail the scan. A cancelled scan returns the registry built from the files
// read so far with the report marked Cancelled.
func (c *ScanCommand) Execute(ctx context.Context) (*domain.Registry, *domain.ScanReport, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	reg := domain.NewRegistry(c.Options.Registry)
	// A new registry takes the whole batch as one pass.
	report := apply(ctx, c.cache, reg, c.Paths, nil, c.Options, func(headers []*domain.DicomHeader) *domain.MergeResult {
		return reg.Merge(domain.RunPass(headers, c.Options.Registry))
	})
	return reg, report, nil
}

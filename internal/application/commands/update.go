package commands

import (
	"context"

	"github.com/CodeChoreography/dicomity/internal/application"
	"github.com/CodeChoreography/dicomity/internal/domain"
)

// UpdateCommand folds new or changed files into an existing registry,
// re-grouping only the series they touch
type UpdateCommand struct {
	cache    *application.HeaderCache
	registry *domain.Registry
	Paths    []string
	// Vanished lists files that no longer exist and must leave the registry.
	Vanished []string
	Options  ScanOptions
}

// NewUpdateCommand creates a new UpdateCommand
func NewUpdateCommand(cache *application.HeaderCache, registry *domain.Registry, paths []string, opts ScanOptions) *UpdateCommand {
	return &UpdateCommand{
		cache:    cache,
		registry: registry,
		Paths:    paths,
		Options:  opts,
	}
}

// Validate checks the inputs
func (c *UpdateCommand) Validate() error {
	if c.registry == nil {
		return &application.ValidationError{Field: "registry", Message: "registry is required"}
	}
	if len(c.Vanished) == 0 {
		return application.ValidatePaths(c.Paths)
	}
	return nil
}

// Execute runs the update
func (c *UpdateCommand) Execute(ctx context.Context) (*domain.ScanReport, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return apply(ctx, c.cache, c.registry, c.Paths, c.Vanished, c.Options, c.registry.Apply), nil
}

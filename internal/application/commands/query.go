package commands

import (
	"context"
	"fmt"

	"github.com/CodeChoreography/dicomity/internal/application"
	"github.com/CodeChoreography/dicomity/internal/domain"
)

// ListPatientsCommand lists every patient in a registry
type ListPatientsCommand struct {
	registry *domain.Registry
}

// NewListPatientsCommand creates a new ListPatientsCommand
func NewListPatientsCommand(registry *domain.Registry) *ListPatientsCommand {
	return &ListPatientsCommand{registry: registry}
}

// Execute runs the query
func (c *ListPatientsCommand) Execute(ctx context.Context) ([]domain.PatientView, error) {
	return c.registry.Patients(), nil
}

// ListStudiesCommand lists the studies of one patient
type ListStudiesCommand struct {
	registry  *domain.Registry
	PatientID string
}

// NewListStudiesCommand creates a new ListStudiesCommand
func NewListStudiesCommand(registry *domain.Registry, patientID string) *ListStudiesCommand {
	return &ListStudiesCommand{registry: registry, PatientID: patientID}
}

// Execute runs the query. Patient IDs may legitimately be empty, so an
// unknown patient is reported as ErrNotFound rather than rejected up front.
func (c *ListStudiesCommand) Execute(ctx context.Context) ([]domain.StudyView, error) {
	studies := c.registry.Studies(c.PatientID)
	if len(studies) == 0 {
		return nil, fmt.Errorf("patient %q: %w", c.PatientID, application.ErrNotFound)
	}
	return studies, nil
}

// ListSeriesCommand lists series, optionally restricted to one study
type ListSeriesCommand struct {
	registry  *domain.Registry
	PatientID string
	StudyUID  string
	// All ignores PatientID and StudyUID.
	All bool
}

// NewListSeriesCommand creates a new ListSeriesCommand for one study
func NewListSeriesCommand(registry *domain.Registry, patientID, studyUID string) *ListSeriesCommand {
	return &ListSeriesCommand{registry: registry, PatientID: patientID, StudyUID: studyUID}
}

// Execute runs the query
func (c *ListSeriesCommand) Execute(ctx context.Context) ([]domain.SeriesView, error) {
	if c.All {
		return c.registry.Series(), nil
	}
	series := c.registry.SeriesIn(c.PatientID, c.StudyUID)
	if len(series) == 0 {
		return nil, fmt.Errorf("study %q of patient %q: %w", c.StudyUID, c.PatientID, application.ErrNotFound)
	}
	return series, nil
}

// GetSeriesCommand fetches one series by its short identifier
type GetSeriesCommand struct {
	registry *domain.Registry
	SeriesID string
}

// NewGetSeriesCommand creates a new GetSeriesCommand
func NewGetSeriesCommand(registry *domain.Registry, seriesID string) *GetSeriesCommand {
	return &GetSeriesCommand{registry: registry, SeriesID: seriesID}
}

// Execute runs the query
func (c *GetSeriesCommand) Execute(ctx context.Context) (domain.SeriesView, error) {
	if err := application.ValidateRequired("seriesID", c.SeriesID); err != nil {
		return domain.SeriesView{}, err
	}
	s, ok := c.registry.SeriesByID(c.SeriesID)
	if !ok {
		return domain.SeriesView{}, fmt.Errorf("series %s: %w", c.SeriesID, application.ErrNotFound)
	}
	return s, nil
}

// LargestSeriesCommand picks the series with the most instances, the usual
// choice of main volume
type LargestSeriesCommand struct {
	registry *domain.Registry
}

// NewLargestSeriesCommand creates a new LargestSeriesCommand
func NewLargestSeriesCommand(registry *domain.Registry) *LargestSeriesCommand {
	return &LargestSeriesCommand{registry: registry}
}

// Execute runs the query
func (c *LargestSeriesCommand) Execute(ctx context.Context) (domain.SeriesView, error) {
	s, ok := c.registry.LargestSeries()
	if !ok {
		return domain.SeriesView{}, fmt.Errorf("largest series: %w", application.ErrNotFound)
	}
	return s, nil
}

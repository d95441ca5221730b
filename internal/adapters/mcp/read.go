package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/CodeChoreography/dicomity/internal/application/commands"
	"github.com/CodeChoreography/dicomity/internal/domain"
)

// errNoRegistry is returned by read tools before the first scan
var errNoRegistry = errors.New("nothing scanned yet: call scan first")

// RegistrySource hands out the registry of the latest scan
type RegistrySource interface {
	Registry() *domain.Registry
}

// RegisterReadTools adds all registry query tools to the MCP server.
func RegisterReadTools(s *server.MCPServer, src RegistrySource) {
	s.AddTool(listPatientsTool(), listPatientsHandler(src))
	s.AddTool(listStudiesTool(), listStudiesHandler(src))
	s.AddTool(listSeriesTool(), listSeriesHandler(src))
	s.AddTool(seriesInstancesTool(), seriesInstancesHandler(src))
	s.AddTool(largestSeriesTool(), largestSeriesHandler(src))
}

func registry(src RegistrySource) (*domain.Registry, error) {
	reg := src.Registry()
	if reg == nil {
		return nil, errNoRegistry
	}
	return reg, nil
}

// --- list_patients ---

func listPatientsTool() mcp.Tool {
	return mcp.NewTool("list_patients",
		mcp.WithDescription("List the patients found by the last scan with their study, series and image counts."),
	)
}

func listPatientsHandler(src RegistrySource) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg, err := registry(src)
		if err != nil {
			return toolError(err)
		}
		patients, err := commands.NewListPatientsCommand(reg).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return formatEntities(patients, formatPatient)
	}
}

// --- list_studies ---

func listStudiesTool() mcp.Tool {
	return mcp.NewTool("list_studies",
		mcp.WithDescription("List the studies of one patient."),
		mcp.WithString("patient_id",
			mcp.Description("Patient ID as shown by list_patients (may be empty for anonymized data)"),
		),
	)
}

func listStudiesHandler(src RegistrySource) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg, err := registry(src)
		if err != nil {
			return toolError(err)
		}
		studies, err := commands.NewListStudiesCommand(reg, req.GetString("patient_id", "")).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return formatEntities(studies, formatStudy)
	}
}

// --- list_series ---

func listSeriesTool() mcp.Tool {
	return mcp.NewTool("list_series",
		mcp.WithDescription("List series with their ordering method. Without study_uid lists every series."),
		mcp.WithString("patient_id",
			mcp.Description("Patient ID of the study"),
		),
		mcp.WithString("study_uid",
			mcp.Description("Study instance UID. Omit to list all series."),
		),
	)
}

func listSeriesHandler(src RegistrySource) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg, err := registry(src)
		if err != nil {
			return toolError(err)
		}
		studyUID := req.GetString("study_uid", "")
		cmd := commands.NewListSeriesCommand(reg, req.GetString("patient_id", ""), studyUID)
		cmd.All = studyUID == ""
		series, err := cmd.Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return formatEntities(series, formatSeries)
	}
}

// --- series_instances ---

func seriesInstancesTool() mcp.Tool {
	return mcp.NewTool("series_instances",
		mcp.WithDescription("List the files of a series in display order, one path per line."),
		mcp.WithString("series_id",
			mcp.Description("Series ID as shown by list_series"),
			mcp.Required(),
		),
	)
}

func seriesInstancesHandler(src RegistrySource) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg, err := registry(src)
		if err != nil {
			return toolError(err)
		}
		series, err := commands.NewGetSeriesCommand(reg, req.GetString("series_id", "")).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatInstances(series)), nil
	}
}

// --- largest_series ---

func largestSeriesTool() mcp.Tool {
	return mcp.NewTool("largest_series",
		mcp.WithDescription("Return the series with the most images, usually the main volume."),
	)
}

func largestSeriesHandler(src RegistrySource) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg, err := registry(src)
		if err != nil {
			return toolError(err)
		}
		series, err := commands.NewLargestSeriesCommand(reg).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatSeries(series)), nil
	}
}

// --- helpers ---

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func formatEntities[T any](entities []T, format func(T) string) (*mcp.CallToolResult, error) {
	if len(entities) == 0 {
		return mcp.NewToolResultText("No results."), nil
	}
	var sb strings.Builder
	for _, e := range entities {
		sb.WriteString(format(e))
		sb.WriteByte('\n')
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatPatient(p domain.PatientView) string {
	return fmt.Sprintf("%s  %s  modalities=%s  studies=%d  series=%d  images=%d",
		p.ID, p.Name, strings.Join(p.Modalities, ","), p.StudyCount, p.SeriesCount, p.InstanceCount)
}

func formatStudy(s domain.StudyView) string {
	return fmt.Sprintf("%s  %s  %s  series=%d  images=%d", s.UID, s.Date, s.Description, s.SeriesCount, s.InstanceCount)
}

func formatSeries(s domain.SeriesView) string {
	number := "-"
	if s.SeriesNumber != nil {
		number = fmt.Sprint(*s.SeriesNumber)
	}
	confidence := "uncertain"
	if s.Confident {
		confidence = "confident"
	}
	line := fmt.Sprintf("%s  #%s  %s  %s  images=%d  order=%s (%s)",
		s.ID, number, s.Modality, s.Description, s.InstanceCount, s.Method, confidence)
	if s.Split != nil {
		line += fmt.Sprintf("  split=%d", s.Split.Siblings)
	}
	return line
}

func formatInstances(s domain.SeriesView) string {
	var sb strings.Builder
	for _, ref := range s.OrderedInstances() {
		sb.WriteString(ref.Path)
		if len(ref.Frames) > 0 {
			fmt.Fprintf(&sb, "  frames=%v", ref.Frames)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

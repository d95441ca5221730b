package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// Scanner runs scans on behalf of the scan tools
type Scanner interface {
	RegistrySource
	Scan(ctx context.Context, roots []string, progress ports.ProgressReporter) (*domain.ScanReport, error)
	Refresh(ctx context.Context, progress ports.ProgressReporter) (*domain.ScanReport, error)
	CacheStats() domain.CacheStats
}

// RegisterScanTools adds the tools that build or update the registry.
func RegisterScanTools(s *server.MCPServer, sc Scanner) {
	s.AddTool(scanTool(), scanHandler(sc))
	s.AddTool(refreshTool(), refreshHandler(sc))
	s.AddTool(cacheStatsTool(), cacheStatsHandler(sc))
}

// --- scan ---

func scanTool() mcp.Tool {
	return mcp.NewTool("scan",
		mcp.WithDescription("Scan directories or files for DICOM images and group them into series. Replaces the previous scan."),
		mcp.WithString("roots",
			mcp.Description(fmt.Sprintf("Paths to scan, separated by %q", os.PathListSeparator)),
			mcp.Required(),
		),
	)
}

func scanHandler(sc Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		roots := splitRoots(req.GetString("roots", ""))
		report, err := sc.Scan(ctx, roots, nil)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatReport(report, sc.Registry())), nil
	}
}

func splitRoots(s string) []string {
	var roots []string
	for _, r := range strings.Split(s, string(os.PathListSeparator)) {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	return roots
}

// --- refresh ---

func refreshTool() mcp.Tool {
	return mcp.NewTool("refresh",
		mcp.WithDescription("Rescan the roots of the last scan, reading only new or changed files."),
	)
}

func refreshHandler(sc Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := sc.Refresh(ctx, nil)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatReport(report, sc.Registry())), nil
	}
}

// --- cache_stats ---

func cacheStatsTool() mcp.Tool {
	return mcp.NewTool("cache_stats",
		mcp.WithDescription("Show header cache counters."),
	)
}

func cacheStatsHandler(sc Scanner) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st := sc.CacheStats()
		return mcp.NewToolResultText(fmt.Sprintf("entries=%d hits=%d misses=%d parses=%d failures=%d",
			st.Entries, st.Hits, st.Misses, st.Parses, st.Failures)), nil
	}
}

func formatReport(r *domain.ScanReport, reg *domain.Registry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "files=%d parsed=%d cached=%d failed=%d duplicates=%d\n",
		r.FilesProcessed, r.Parsed, r.CacheHits, len(r.Failures), len(r.Duplicates))
	if reg != nil {
		fmt.Fprintf(&sb, "series=%d\n", reg.Len())
	}
	if r.Cancelled {
		sb.WriteString("cancelled before all files were read\n")
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&sb, "unreadable: %s: %v\n", f.Path, f.Err)
	}
	for _, e := range r.GroupErrors {
		fmt.Fprintf(&sb, "group error: %v\n", e)
	}
	return sb.String()
}

package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/CodeChoreography/dicomity/internal/adapters/tui/styles"
	"github.com/CodeChoreography/dicomity/internal/domain"
)

// RenderKeyHelp formats a key binding as help text (key + description)
func RenderKeyHelp(b key.Binding) string {
	help := b.Help()
	return fmt.Sprintf("%s %s",
		styles.HelpKey.Render(help.Key),
		styles.HelpDesc.Render(help.Desc),
	)
}

// RenderHelpLine renders multiple key bindings as a help line separated by bullets
func RenderHelpLine(bindings ...key.Binding) string {
	var parts []string
	for _, b := range bindings {
		parts = append(parts, RenderKeyHelp(b))
	}
	return strings.Join(parts, styles.HelpSeparator.String())
}

// RenderMessage renders a message with appropriate styling based on isError
func RenderMessage(message string, isError bool) string {
	if message == "" {
		return ""
	}
	if isError {
		return styles.ErrorMsg.Render(message)
	}
	return styles.Success.Render(message)
}

// RenderLabelValue renders a label: value pair
func RenderLabelValue(label, value string) string {
	return fmt.Sprintf("%s %s", styles.Label.Render(label+":"), value)
}

// RenderMethod renders an ordering method colored by confidence
func RenderMethod(method domain.OrderingMethod, confident bool) string {
	if confident {
		return styles.Confident.Render(method.String())
	}
	return styles.Uncertain.Render(method.String() + "?")
}

// SeriesNumber formats an optional series number
func SeriesNumber(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}

// ReportSummary describes a finished scan in one line
func ReportSummary(r *domain.ScanReport) string {
	if r == nil {
		return ""
	}
	s := fmt.Sprintf("%d files, %d parsed, %d cached, %d failed, %d duplicates",
		r.FilesProcessed, r.Parsed, r.CacheHits, len(r.Failures), len(r.Duplicates))
	if r.Cancelled {
		s += " (cancelled)"
	}
	return s
}

package application

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

// ValidateRequired checks if a string field is non-empty (after trimming whitespace).
// Returns a ValidationError if the field is empty.
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("%s is required", formatFieldName(fieldName)),
		}
	}
	return nil
}

// formatFieldName converts camelCase field names to space-separated words
// for more readable error messages (e.g., "seriesID" -> "series ID")
func formatFieldName(fieldName string) string {
	replacements := map[string]string{
		"patientID": "patient ID",
		"studyUID":  "study UID",
		"seriesID":  "series ID",
		"paths":     "input paths",
	}

	if formatted, ok := replacements[fieldName]; ok {
		return formatted
	}
	return fieldName
}

// ValidatePaths rejects an empty or blank path list.
func ValidatePaths(paths []string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			return nil
		}
	}
	return &ValidationError{Field: "paths", Message: "at least one path is required", Err: ErrNoPaths}
}

// ValidateOptions checks engine settings before a scan starts.
func ValidateOptions(opts domain.RegistryOptions) error {
	if err := domain.ValidateDiscriminators(opts.Grouping.Discriminators); err != nil {
		return &ValidationError{Field: "grouping.discriminators", Message: err.Error()}
	}
	if !(opts.Ordering.CVThreshold > 0) {
		return &ValidationError{Field: "ordering.cv_threshold", Message: "must be > 0"}
	}
	if !(opts.Ordering.OrientationTolerance > 0) {
		return &ValidationError{Field: "ordering.orientation_tolerance", Message: "must be > 0"}
	}
	return nil
}

// Workers normalizes a worker count, defaulting to the number of CPUs.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

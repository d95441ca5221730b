package application

import (
	"errors"
	"fmt"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

// Sentinel errors for common conditions
var (
	ErrNotFound   = errors.New("not found")
	ErrNoPaths    = errors.New("no input paths")
	ErrParse      = errors.New("parse failed")
	ErrEmptyGroup = domain.ErrEmptyGroup
)

// ValidationError represents a validation failure with details
type ValidationError struct {
	Field   string
	Message string
	// Err optionally names the sentinel behind the failure.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseError reports a file that could not be read as DICOM.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

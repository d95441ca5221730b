package ports

import (
	"context"
	"errors"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

// ErrNotDicom is returned by a HeaderParser for files that are not DICOM
// Part 10 objects, or that are DICOMDIR indexes.
var ErrNotDicom = errors.New("not a DICOM file")

// HeaderParser reads the header attributes of one file.
type HeaderParser interface {
	// Parse returns the raw tag values of the file keyed by DICOM keyword.
	// Pixel data is never read.
	Parse(ctx context.Context, path string) (domain.TagValues, error)
}

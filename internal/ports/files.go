package ports

import (
	"context"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

// FileInspector reports the on-disk state of a file.
type FileInspector interface {
	// Fingerprint returns the size and modification time of path. It returns
	// an error wrapping fs.ErrNotExist for missing files.
	Fingerprint(path string) (domain.Fingerprint, error)
}

// FileLister expands roots into candidate file paths.
type FileLister interface {
	// List walks every root and returns regular files in natural order.
	// Roots that are files are returned as is.
	List(ctx context.Context, roots []string) ([]string, error)
}

package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// dicomdirName is the media index file; it never holds an image.
const dicomdirName = "DICOMDIR"

// Lister implements ports.FileLister on the local filesystem
type Lister struct {
	// IncludeHidden walks into dot directories and lists dot files.
	IncludeHidden bool
}

// Ensure Lister implements FileLister
var _ ports.FileLister = (*Lister)(nil)

// NewLister creates a new Lister
func NewLister() *Lister {
	return &Lister{}
}

// List walks every root and returns regular files in natural order. A root
// that is a file is returned as is, DICOMDIR included, so the parser can
// reject it with a proper reason.
func (l *Lister) List(ctx context.Context, roots []string) ([]string, error) {
	var out []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}
		if !info.IsDir() {
			out = append(out, abs)
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			name := d.Name()
			if d.IsDir() {
				if path != abs && !l.IncludeHidden && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if strings.EqualFold(name, dicomdirName) {
				return nil
			}
			if !l.IncludeHidden && strings.HasPrefix(name, ".") {
				return nil
			}
			out = append(out, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return domain.SortNatural(out), nil
}

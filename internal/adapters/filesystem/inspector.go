package filesystem

import (
	"os"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// Inspector implements ports.FileInspector with os.Stat
type Inspector struct{}

// Ensure Inspector implements FileInspector
var _ ports.FileInspector = Inspector{}

// Fingerprint returns the size and modification time of path
func (Inspector) Fingerprint(path string) (domain.Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Fingerprint{}, err
	}
	return domain.Fingerprint{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

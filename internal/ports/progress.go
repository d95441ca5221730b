package ports

import "github.com/CodeChoreography/dicomity/internal/domain"

// ProgressReporter observes a scan file by file. Calls arrive from worker
// goroutines through a single relay, so implementations need not be
// thread-safe, but they must not block for long.
type ProgressReporter interface {
	TotalKnown(total int)
	FileStarted(path string)
	FileCompleted(path string, outcome domain.FileOutcome, err error)
}

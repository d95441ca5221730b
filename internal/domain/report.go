package domain

import "time"

// FileOutcome is what happened to one file during a scan.
type FileOutcome int

const (
	OutcomeParsed FileOutcome = iota
	OutcomeCached
	OutcomeFailed
	OutcomeSkipped
)

func (o FileOutcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeCached:
		return "cached"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// FileFailure records a file that produced no header.
type FileFailure struct {
	Path string
	Err  error
}

// ScanReport holds statistics from a scan or an incremental update.
type ScanReport struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration

	FilesTotal     int
	FilesProcessed int
	Parsed         int
	CacheHits      int

	Failures       []FileFailure
	Duplicates     []*DuplicateInstanceError
	GroupErrors    []*GroupError
	SeriesAffected []GroupKey
	SeriesRemoved  []GroupKey

	Cancelled bool
}

// FailedPaths returns the paths of every failed file.
func (r *ScanReport) FailedPaths() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Path
	}
	return out
}

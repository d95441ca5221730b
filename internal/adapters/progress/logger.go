// Package progress provides progress reporters that need no terminal.
package progress

import (
	"go.uber.org/zap"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// Logger reports progress through a zap logger: per-file outcomes at debug,
// and a line every Every completed files at info.
type Logger struct {
	logger *zap.Logger
	Every  int

	total int
	done  int
}

// Ensure Logger implements ProgressReporter
var _ ports.ProgressReporter = (*Logger)(nil)

// NewLogger creates a reporter logging a summary line every 500 files
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger, Every: 500}
}

func (l *Logger) TotalKnown(total int) {
	l.total = total
	l.logger.Info("scanning", zap.Int("files", total))
}

func (l *Logger) FileStarted(path string) {}

func (l *Logger) FileCompleted(path string, outcome domain.FileOutcome, err error) {
	l.done++
	if err != nil {
		l.logger.Debug("file done", zap.String("path", path), zap.Stringer("outcome", outcome), zap.Error(err))
	} else {
		l.logger.Debug("file done", zap.String("path", path), zap.Stringer("outcome", outcome))
	}
	if l.Every > 0 && l.done%l.Every == 0 {
		l.logger.Info("progress", zap.Int("done", l.done), zap.Int("total", l.total))
	}
}

// Done returns how many files completed so far
func (l *Logger) Done() int {
	return l.done
}

package commands

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

const relayBuffer = 256

type progressEvent struct {
	kind    int
	path    string
	total   int
	outcome domain.FileOutcome
	err     error
}

const (
	eventTotal = iota
	eventStarted
	eventCompleted
)

// progressRelay forwards notifications from workers to a reporter on a
// single goroutine. A full buffer drops events. A reporter that panics is
// logged once and then ignored.
type progressRelay struct {
	reporter ports.ProgressReporter
	logger   *zap.Logger
	events   chan progressEvent
	done     chan struct{}
	dropped  atomic.Int64
	broken   bool
}

func newProgressRelay(reporter ports.ProgressReporter, logger *zap.Logger) *progressRelay {
	if reporter == nil {
		return nil
	}
	r := &progressRelay{
		reporter: reporter,
		logger:   logger,
		events:   make(chan progressEvent, relayBuffer),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *progressRelay) run() {
	defer close(r.done)
	for ev := range r.events {
		if !r.broken {
			r.deliver(ev)
		}
	}
}

func (r *progressRelay) deliver(ev progressEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.broken = true
			r.logger.Error("progress reporter panicked, disabling it", zap.Any("panic", rec))
		}
	}()
	switch ev.kind {
	case eventTotal:
		r.reporter.TotalKnown(ev.total)
	case eventStarted:
		r.reporter.FileStarted(ev.path)
	case eventCompleted:
		r.reporter.FileCompleted(ev.path, ev.outcome, ev.err)
	}
}

func (r *progressRelay) send(ev progressEvent) {
	if r == nil {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
	}
}

func (r *progressRelay) TotalKnown(total int) {
	r.send(progressEvent{kind: eventTotal, total: total})
}

func (r *progressRelay) FileStarted(path string) {
	r.send(progressEvent{kind: eventStarted, path: path})
}

func (r *progressRelay) FileCompleted(path string, outcome domain.FileOutcome, err error) {
	r.send(progressEvent{kind: eventCompleted, path: path, outcome: outcome, err: err})
}

// Close drains pending events and stops the relay.
func (r *progressRelay) Close() {
	if r == nil {
		return
	}
	close(r.events)
	<-r.done
	if n := r.dropped.Load(); n > 0 {
		r.logger.Debug("progress events dropped", zap.Int64("count", n))
	}
}

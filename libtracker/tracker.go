// Package libtracker records the lifecycle of service operations.
//
// A tracker is started for one operation on one subject and returns three
// callbacks: reportErr for failures, reportChange for successful state
// changes and end, which must always be called (usually deferred).
package libtracker

import (
	"context"
	"log/slog"
	"time"
)

// ActivityTracker starts tracking an operation on a subject.
type ActivityTracker interface {
	Start(
		ctx context.Context,
		operation string,
		subject string,
		kvArgs ...any,
	) (reportErr func(err error), reportChange func(id string, data any), end func())
}

// NoopTracker drops every report.
type NoopTracker struct{}

func (NoopTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (func(error), func(string, any), func()) {
	return func(error) {}, func(string, any) {}, func() {}
}

// ChainedTracker fans each report out to all trackers in order.
type ChainedTracker []ActivityTracker

func (c ChainedTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (func(error), func(string, any), func()) {
	errFns := make([]func(error), 0, len(c))
	changeFns := make([]func(string, any), 0, len(c))
	endFns := make([]func(), 0, len(c))
	for _, t := range c {
		if t == nil {
			continue
		}
		e, ch, end := t.Start(ctx, operation, subject, kvArgs...)
		errFns = append(errFns, e)
		changeFns = append(changeFns, ch)
		endFns = append(endFns, end)
	}
	reportErr := func(err error) {
		for _, f := range errFns {
			f(err)
		}
	}
	reportChange := func(id string, data any) {
		for _, f := range changeFns {
			f(id, data)
		}
	}
	end := func() {
		// reverse order, like stacked defers
		for i := len(endFns) - 1; i >= 0; i-- {
			endFns[i]()
		}
	}
	return reportErr, reportChange, end
}

// LogActivityTracker writes operation lifecycles to a slog.Logger.
type LogActivityTracker struct {
	logger *slog.Logger
}

// NewLogActivityTracker returns a tracker that logs to logger.
func NewLogActivityTracker(logger *slog.Logger) *LogActivityTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogActivityTracker{logger: logger}
}

func (t *LogActivityTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (func(error), func(string, any), func()) {
	start := time.Now()
	attrs := append([]any{
		"request_id", RequestID(ctx),
		"operation", operation,
		"subject", subject,
	}, traceValues(ctx)...)
	attrs = append(attrs, kvArgs...)
	logger := t.logger.With(attrs...)
	logger.DebugContext(ctx, "operation started")

	failed := false
	reportErr := func(err error) {
		if err == nil {
			return
		}
		failed = true
		logger.ErrorContext(ctx, "operation failed", "error", err)
	}
	reportChange := func(id string, data any) {
		logger.InfoContext(ctx, "state changed", "entity_id", id, "change", data)
	}
	end := func() {
		logger.DebugContext(ctx, "operation finished", "duration", time.Since(start), "failed", failed)
	}
	return reportErr, reportChange, end
}

var (
	_ ActivityTracker = NoopTracker{}
	_ ActivityTracker = ChainedTracker{}
	_ ActivityTracker = (*LogActivityTracker)(nil)
)

package syncengine

import (
	"log/slog"
	"time"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier sets where user notices go.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithReporter adds a status reporter. It may be given more than once.
func WithReporter(r StatusReporter) Option {
	return func(e *Engine) { e.reporters = append(e.reporters, r) }
}

// WithObserver adds a sync history observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// SyncOption configures one SyncNote call.
type SyncOption func(*syncOptions)

type syncOptions struct {
	log *DebugLog
}

// WithDebugLog collects the diagnostic lines of the call in l, so that the
// caller can show or save them whatever the outcome.
func WithDebugLog(l *DebugLog) SyncOption {
	return func(o *syncOptions) { o.log = l }
}

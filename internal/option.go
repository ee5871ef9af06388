package internal

import (
	"io"

	"github.com/starford/kadisync/internal/syncengine"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	notifier  syncengine.Notifier
	reporters []syncengine.StatusReporter
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput replaces stdout as the destination of the JSON log. The MCP
// stdio transport owns stdout, so it logs to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithNotifier shows the engine's notices, e.g. on a terminal.
func WithNotifier(n syncengine.Notifier) Option {
	return func(a *application) {
		a.notifier = n
	}
}

// WithReporter adds a receiver of note state changes.
func WithReporter(r syncengine.StatusReporter) Option {
	return func(a *application) {
		a.reporters = append(a.reporters, r)
	}
}

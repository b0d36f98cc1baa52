package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Version is reported to MCP clients. Overridden at build time.
var Version = "dev"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
	out    io.Writer
	script string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the JSON logger each mode builds by default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithOutput sets where user-facing output goes. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithScript makes the shell execute commands from a file instead of
// reading them interactively.
func WithScript(path string) Option {
	return func(a *application) {
		a.script = path
	}
}

// newApplication applies opts. logTo receives the default logger's
// output: stdout when serving, stderr when stdout carries results.
func newApplication(logTo io.Writer, opts ...Option) (*application, error) {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = NewLogger(logTo, app.config.App.LogLevel)
	}
	return app, nil
}

// NewLogger returns a JSON slog logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

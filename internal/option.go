package internal

import (
	"io"
	"log/slog"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	logOut  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithLogOutput redirects the JSON log stream. The MCP command sends logs to
// stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

func (a *application) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// Runner holds the dependencies shared by command actions.
type Runner struct {
	output io.Writer
	logger *slog.Logger
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Output io.Writer
	Logger *slog.Logger
}

// NewRunner creates a Runner, defaulting to stdout and a stderr logger.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return &Runner{output: opts.Output, logger: opts.Logger}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, mcpCommand, watchCommand, lsCommand, addCommand, editCommand, rmCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) writeJSON(data any) error {
	enc := json.NewEncoder(r.output)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/starford/smartmarks/internal"
	pkgconfig "github.com/starford/smartmarks/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Serve runs the HTTP server.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// MCP serves the bookmark tools on stdio for one owner.
func (r *Runner) MCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, cmd.String("owner"),
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	)
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the web server, API and change feed",
		Action: r.Serve,
	}
}

func mcpCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve bookmark tools over MCP on stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "owner",
				Usage:   "Owner the tools act as (default: auth.local_owner)",
				Sources: cli.EnvVars("SMARTMARKS_OWNER"),
			},
		},
		Action: r.MCP,
	}
}

package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	r := NewRunner(RunnerOpts{})

	cmd := &cli.Command{
		Name:    "smartmarks",
		Usage:   "Personal bookmark manager with live-updating web and terminal views",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("SMARTMARKS_CONFIG"),
			},
		},
		Commands: r.register(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/starford/smartmarks/internal/client"
	"github.com/starford/smartmarks/internal/models"
	"github.com/starford/smartmarks/internal/tui"
)

var errMissingArgument = errors.New("missing argument")

func remoteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Base URL of the smartmarks server",
			Value:   "http://localhost:8080",
			Sources: cli.EnvVars("SMARTMARKS_SERVER"),
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token: the shared token or a session token from /api/session",
			Sources: cli.EnvVars("SMARTMARKS_TOKEN"),
		},
	}
}

func (r *Runner) client(cmd *cli.Command) (*client.Client, error) {
	var opts []client.Option
	if tok := cmd.String("token"); tok != "" {
		opts = append(opts, client.WithToken(tok))
	}
	return client.New(cmd.String("server"), opts...)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", errMissingArgument, name)
	}
	return v, nil
}

// Watch opens the live terminal list.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	c, err := r.client(cmd)
	if err != nil {
		return err
	}
	// Fail before taking over the screen when the server is unreachable.
	if _, err := c.Me(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cmd.String("server"), err)
	}
	if err := tui.Run(ctx, c, r.logger); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// List prints bookmarks newest first.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	c, err := r.client(cmd)
	if err != nil {
		return err
	}
	items, total, err := c.List(ctx, cmd.String("query"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(items)
	}
	fmt.Fprintln(r.output, renderTable(items))
	fmt.Fprintf(r.output, "%d of %d bookmarks\n", len(items), total)
	return nil
}

// Add creates a bookmark.
func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	rawURL, err := requireArg(cmd, "url")
	if err != nil {
		return err
	}
	c, err := r.client(cmd)
	if err != nil {
		return err
	}
	b, err := c.Create(ctx, title, rawURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.output, "added %s\n", b.ID)
	return nil
}

// Edit changes the title and/or URL of a bookmark.
func (r *Runner) Edit(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	var patch models.BookmarkPatch
	if cmd.IsSet("title") {
		v := cmd.String("title")
		patch.Title = &v
	}
	if cmd.IsSet("url") {
		v := cmd.String("url")
		patch.URL = &v
	}
	if patch.Empty() {
		return fmt.Errorf("%w: pass --title and/or --url", errMissingArgument)
	}

	c, err := r.client(cmd)
	if err != nil {
		return err
	}
	b, err := c.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.output, "updated %s: %s <%s>\n", b.ID, b.Title, b.URL)
	return nil
}

// Remove deletes a bookmark.
func (r *Runner) Remove(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	c, err := r.client(cmd)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(r.output, "deleted %s\n", id)
	return nil
}

func renderTable(items []models.Bookmark) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "DOMAIN", "ADDED").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, b := range items {
		domain := b.Domain()
		if domain == "" {
			domain = b.URL
		}
		t.Row(b.ID, b.Title, domain, b.CreatedAt.Local().Format("Jan 2"))
	}
	return t.Render()
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Show a live list of bookmarks in the terminal",
		Flags:  remoteFlags(),
		Action: r.Watch,
	}
}

func lsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List bookmarks",
		Flags: append(remoteFlags(),
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Filter by title or URL",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of bookmarks",
				Value: 50,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		),
		Action: r.List,
	}
}

func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a bookmark",
		ArgsUsage: "<title> <url>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "title"},
			&cli.StringArg{Name: "url"},
		},
		Flags:  remoteFlags(),
		Action: r.Add,
	}
}

func editCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change a bookmark's title or URL",
		ArgsUsage: "<id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: append(remoteFlags(),
			&cli.StringFlag{Name: "title", Usage: "New title"},
			&cli.StringFlag{Name: "url", Usage: "New URL"},
		),
		Action: r.Edit,
	}
}

func rmCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a bookmark",
		ArgsUsage: "<id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  remoteFlags(),
		Action: r.Remove,
	}
}

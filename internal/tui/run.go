package tui

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/starford/smartmarks/internal/client"
	"github.com/starford/smartmarks/internal/livelist"
	"github.com/starford/smartmarks/internal/models"
)

// Run shows the live list for the client's owner until the user quits.
func Run(ctx context.Context, c *client.Client, logger *slog.Logger) error {
	m := NewModel(ctx, c)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())

	live := livelist.New(c,
		livelist.WithResync(time.Second),
		livelist.WithLogger(logger),
		livelist.OnChange(func(items []models.Bookmark) { p.Send(ItemsMsg(items)) }),
	)

	// Send blocks until the program loop runs, so activation cannot happen
	// on this goroutine.
	actx, cancel := context.WithCancel(ctx)
	activated := make(chan struct{})
	go func() {
		defer close(activated)
		if err := live.Activate(actx); err != nil && actx.Err() == nil {
			p.Send(ErrMsg{Err: err})
		}
	}()

	_, err := p.Run()
	cancel()
	<-activated
	live.Deactivate()
	return err
}

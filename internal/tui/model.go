// Package tui renders a live bookmark list in the terminal with bubbletea.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/starford/smartmarks/internal/models"
)

// ViewState is the screen currently shown.
type ViewState int

const (
	LoadingView ViewState = iota
	ListView
	ConfirmView
	ErrorView
)

// Deleter removes a bookmark on the server.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// ItemsMsg carries the reconciled collection after every change.
type ItemsMsg []models.Bookmark

// ErrMsg reports a failure that the user must acknowledge.
type ErrMsg struct{ Err error }

type deletedMsg struct {
	id  string
	err error
}

// Model is the terminal view state.
type Model struct {
	ctx     context.Context
	view    ViewState
	deleter Deleter
	width   int
	height  int
	list    list.Model
	pending *models.Bookmark
	status  string
	err     error
	prev    ViewState
	help    help.Model
	keys    keyMap
}

// NewModel creates a model that deletes through d. Items arrive as ItemsMsg.
func NewModel(ctx context.Context, d Deleter) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Bookmarks"
	l.SetShowHelp(false)
	return &Model{
		ctx:     ctx,
		view:    LoadingView,
		deleter: d,
		list:    l,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ErrorView:
			return m.handleErrorKeys(msg)
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		return m.handleListKeys(msg)

	case ItemsMsg:
		cmd := m.list.SetItems(toItems(msg))
		if m.view == LoadingView {
			m.view = ListView
		}
		return m, cmd

	case deletedMsg:
		if msg.err != nil {
			m.showError(fmt.Errorf("delete failed: %w", msg.err))
			return m, nil
		}
		// The row disappears when the feed delivers the delete.
		m.status = "Deleted."
		return m, nil

	case ErrMsg:
		m.showError(msg.Err)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.delete):
		item, ok := m.list.SelectedItem().(bookmarkItem)
		if !ok {
			return m, nil
		}
		b := item.bookmark
		m.pending = &b
		m.status = ""
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		b := m.pending
		m.pending = nil
		m.view = ListView
		if b == nil {
			return m, nil
		}
		return m, m.deleteBookmark(b.ID)
	case key.Matches(msg, m.keys.no):
		m.pending = nil
		m.view = ListView
		return m, nil
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	m.err = nil
	if m.prev == LoadingView {
		// Nothing to go back to.
		return m, tea.Quit
	}
	m.view = m.prev
	return m, nil
}

func (m *Model) showError(err error) {
	if m.view != ErrorView {
		m.prev = m.view
		if m.prev == ConfirmView {
			m.prev = ListView
		}
	}
	m.err = err
	m.view = ErrorView
}

func (m *Model) deleteBookmark(id string) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{id: id, err: m.deleter.Delete(m.ctx, id)}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return "Loading bookmarks..."
	case ConfirmView:
		return m.renderConfirm()
	case ErrorView:
		return m.renderError()
	}
	return m.renderList()
}

func (m *Model) renderList() string {
	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = styles.title.Render("Bookmarks") + "\n" + styles.help.Render("No bookmarks yet.")
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.delete, m.keys.quit})
	if m.status != "" {
		return fmt.Sprintf("%s\n%s\n\n%s", body, styles.ok.Render(m.status), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", body, helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.warn.Render(fmt.Sprintf("Delete '%s'?", m.pending.Title))
	info := fmt.Sprintf("\n%s\n", m.pending.URL)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderError() string {
	return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + styles.help.Render("Press any key to continue")
}

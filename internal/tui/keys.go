package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	up     key.Binding
	down   key.Binding
	delete key.Binding
	yes    key.Binding
	no     key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		delete: key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
		yes:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:     key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.delete, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.delete},
		{k.yes, k.no, k.quit},
	}
}

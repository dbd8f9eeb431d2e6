package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/starford/smartmarks/internal/models"
)

var _ list.Item = bookmarkItem{}

// bookmarkItem wraps [models.Bookmark] to implement [list.Item].
type bookmarkItem struct {
	bookmark models.Bookmark
}

func (i bookmarkItem) FilterValue() string { return i.bookmark.Title + " " + i.bookmark.URL }
func (i bookmarkItem) Title() string       { return i.bookmark.Title }
func (i bookmarkItem) Description() string {
	desc := i.bookmark.Domain()
	if desc == "" {
		desc = i.bookmark.URL
	}
	if !i.bookmark.CreatedAt.IsZero() {
		desc = fmt.Sprintf("%s • %s", desc, i.bookmark.CreatedAt.Local().Format("Jan 2, 2006"))
	}
	return desc
}

func toItems(bookmarks []models.Bookmark) []list.Item {
	items := make([]list.Item, len(bookmarks))
	for i, b := range bookmarks {
		items[i] = bookmarkItem{bookmark: b}
	}
	return items
}

//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"strings"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// initSearch is a no-op without FTS5; searchFilter falls back to LIKE.
func initSearch(*sql.DB) error { return nil }

// searchFilter matches the query literally as a substring of title or url.
func searchFilter(query string) (string, []any) {
	if query == "" {
		return "", nil
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	return `(title LIKE ? ESCAPE '\' OR url LIKE ? ESCAPE '\')`, []any{like, like}
}

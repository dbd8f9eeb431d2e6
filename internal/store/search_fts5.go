//go:build sqlite_fts5

package store

import (
	"database/sql"
	"strings"
)

const searchSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS bookmarks_fts USING fts5(
	title, url,
	content='bookmarks',
	content_rowid='rowid',
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS bookmarks_fts_ai AFTER INSERT ON bookmarks BEGIN
	INSERT INTO bookmarks_fts(rowid, title, url) VALUES (new.rowid, new.title, new.url);
END;

CREATE TRIGGER IF NOT EXISTS bookmarks_fts_ad AFTER DELETE ON bookmarks BEGIN
	INSERT INTO bookmarks_fts(bookmarks_fts, rowid, title, url) VALUES ('delete', old.rowid, old.title, old.url);
END;

CREATE TRIGGER IF NOT EXISTS bookmarks_fts_au AFTER UPDATE ON bookmarks BEGIN
	INSERT INTO bookmarks_fts(bookmarks_fts, rowid, title, url) VALUES ('delete', old.rowid, old.title, old.url);
	INSERT INTO bookmarks_fts(rowid, title, url) VALUES (new.rowid, new.title, new.url);
END;
`

// initSearch creates the FTS5 index and rebuilds it so rows written by a
// build without FTS5 become searchable.
func initSearch(conn *sql.DB) error {
	if _, err := conn.Exec(searchSchemaSQL); err != nil {
		return err
	}
	_, err := conn.Exec(`INSERT INTO bookmarks_fts(bookmarks_fts) VALUES ('rebuild')`)
	return err
}

// searchFilter matches every query term as a prefix against title or url.
func searchFilter(query string) (string, []any) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return "", nil
	}
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return `rowid IN (SELECT rowid FROM bookmarks_fts WHERE bookmarks_fts MATCH ?)`, []any{strings.Join(terms, " ")}
}

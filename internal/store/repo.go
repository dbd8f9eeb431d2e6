package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/smartmarks/internal/apperr"
	"github.com/starford/smartmarks/internal/models"
)

const defaultListLimit = 500

// Insert stores a new bookmark. The caller is expected to have validated it.
func (db *DB) Insert(b models.Bookmark) error {
	_, err := db.conn.Exec(`
		INSERT INTO bookmarks (id, user_id, title, url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.OwnerID, b.Title, b.URL, b.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert bookmark: %w", err)
	}
	return nil
}

// Get returns the owner's bookmark with the given id.
func (db *DB) Get(owner, id string) (*models.Bookmark, error) {
	return getBookmark(db.conn, owner, id)
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getBookmark(q queryRower, owner, id string) (*models.Bookmark, error) {
	var b models.Bookmark
	err := q.QueryRow(`
		SELECT id, user_id, title, url, created_at
		FROM bookmarks WHERE id = ? AND user_id = ?
	`, id, owner).Scan(&b.ID, &b.OwnerID, &b.Title, &b.URL, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get bookmark: %w", err)
	}
	return &b, nil
}

// Update applies patch to the owner's bookmark and returns the stored row.
// When expect is non-nil the write only happens if title and url still equal
// expect's; otherwise it fails with apperr.ErrConflict.
func (db *DB) Update(owner, id string, patch models.BookmarkPatch, expect *models.Bookmark) (*models.Bookmark, error) {
	query := `
		UPDATE bookmarks SET title = COALESCE(?, title), url = COALESCE(?, url)
		WHERE id = ? AND user_id = ?`
	args := []any{trimmed(patch.Title), trimmed(patch.URL), id, owner}
	if expect != nil {
		query += ` AND title = ? AND url = ?`
		args = append(args, expect.Title, expect.URL)
	}

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("store: rows affected: %w", err)
	}

	current, err := db.Get(owner, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.ErrConflict
	}
	return current, nil
}

func trimmed(s *string) any {
	if s == nil {
		return nil
	}
	return strings.TrimSpace(*s)
}

// Delete removes the owner's bookmark. Missing rows yield apperr.ErrNotFound.
func (db *DB) Delete(owner, id string) error {
	res, err := db.conn.Exec(`DELETE FROM bookmarks WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("store: delete bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// List returns the owner's bookmarks newest first, optionally filtered by a
// substring of title or URL, together with the total match count.
func (db *DB) List(owner string, opts ListOptions) ([]models.Bookmark, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	where := `user_id = ?`
	args := []any{owner}
	if clause, qargs := searchFilter(opts.Query); clause != "" {
		where += ` AND ` + clause
		args = append(args, qargs...)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM bookmarks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count bookmarks: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, user_id, title, url, created_at
		FROM bookmarks WHERE `+where+`
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, append(args, limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list bookmarks: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bookmark, 0)
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.URL, &b.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

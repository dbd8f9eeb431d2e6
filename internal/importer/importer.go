// Package importer turns export files dropped into an inbox directory into
// bookmarks. Processed files move to processed/, unreadable ones to failed/
// next to a .err note with the reason.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/smartmarks/internal/apperr"
	"github.com/starford/smartmarks/internal/models"
	"github.com/starford/smartmarks/internal/parser"
	"github.com/starford/smartmarks/internal/storage"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Creator is the mutation surface the importer needs.
type Creator interface {
	Create(ctx context.Context, owner, title, rawURL string) (*models.Bookmark, error)
}

// Result summarises one imported file.
type Result struct {
	Path     string
	Imported int
	Skipped  int
	Err      error
}

// Importer imports inbox files for a single owner.
type Importer struct {
	inbox  storage.Provider
	svc    Creator
	owner  string
	logger *slog.Logger
	now    func() time.Time
}

// New creates an importer.
func New(inbox storage.Provider, svc Creator, owner string, logger *slog.Logger) *Importer {
	return &Importer{inbox: inbox, svc: svc, owner: owner, logger: logger, now: time.Now}
}

// Scan imports every pending file in the inbox root, oldest first.
func (im *Importer) Scan(ctx context.Context) ([]Result, error) {
	pending, err := im.inbox.Pending("", parser.Extensions...)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, im.ImportFile(ctx, e.Path))
	}
	return out, nil
}

// ImportFile parses one file and creates a bookmark per entry. Entries that
// fail validation are skipped; a file that cannot be parsed moves to failed/.
func (im *Importer) ImportFile(ctx context.Context, path string) Result {
	res := Result{Path: path}

	data, err := im.inbox.Read(path)
	if err != nil {
		res.Err = err
		return res
	}

	entries, err := parser.Parse(path, data)
	if err != nil {
		res.Err = err
		im.fail(path, err)
		return res
	}

	for _, e := range entries {
		if _, err := im.svc.Create(ctx, im.owner, e.Title, e.URL); err != nil {
			if errors.Is(err, apperr.ErrInvalid) {
				res.Skipped++
				continue
			}
			// Storage errors leave the file in place for the next scan.
			res.Err = err
			im.logger.Error("import: create failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return res
		}
		res.Imported++
	}

	dest := filepath.Join(ProcessedDir, im.stamp(path))
	if err := im.inbox.Move(path, dest); err != nil {
		res.Err = err
		return res
	}
	im.logger.Info("import: done",
		slog.String("path", path),
		slog.Int("imported", res.Imported),
		slog.Int("skipped", res.Skipped))
	return res
}

func (im *Importer) fail(path string, cause error) {
	dest := filepath.Join(FailedDir, im.stamp(path))
	if err := im.inbox.Move(path, dest); err != nil {
		im.logger.Warn("import: move to failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if err := im.inbox.Write(dest+".err", []byte(fmt.Sprintf("%s\n", cause))); err != nil {
		im.logger.Warn("import: write reason", slog.String("path", dest), slog.String("error", err.Error()))
	}
	im.logger.Warn("import: failed", slog.String("path", path), slog.String("error", cause.Error()))
}

// stamp prefixes the base name with the import time so repeated drops of the
// same export do not overwrite each other.
func (im *Importer) stamp(path string) string {
	return im.now().UTC().Format("20060102T150405") + "-" + filepath.Base(path)
}

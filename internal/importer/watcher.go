package importer

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/smartmarks/internal/parser"
)

const settleDelay = 300 * time.Millisecond

// ResultCallback is called for every file handled by the watcher.
type ResultCallback func(Result)

// Watch imports what is already in the inbox, then watches root (not its
// subdirectories) and rescans once writes have settled, until ctx is
// cancelled.
func (im *Importer) Watch(ctx context.Context, root string, cb ResultCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	im.logger.Info("importer: watching", slog.String("root", root))

	im.scan(ctx, cb)

	// Exports are often written in several chunks; wait for quiet.
	var settle *time.Timer
	var settleCh <-chan time.Time
	schedule := func() {
		if settle == nil {
			settle = time.NewTimer(settleDelay)
			settleCh = settle.C
			return
		}
		if !settle.Stop() {
			select {
			case <-settle.C:
			default:
			}
		}
		settle.Reset(settleDelay)
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			im.logger.Info("importer: stopped")
			return nil

		case <-settleCh:
			im.scan(ctx, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !supported(ev.Name) {
				continue
			}
			im.logger.Debug("importer: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("importer: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

func (im *Importer) scan(ctx context.Context, cb ResultCallback) {
	results, err := im.Scan(ctx)
	if err != nil && ctx.Err() == nil {
		im.logger.Warn("importer: scan failed", slog.String("error", err.Error()))
	}
	if cb == nil {
		return
	}
	for _, r := range results {
		cb(r)
	}
}

func supported(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range parser.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

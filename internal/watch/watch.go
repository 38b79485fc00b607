// Package watch reloads the page file on change and pushes incremental
// evaluation passes through the worker.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/bindflow/internal/ctxlog"
	"github.com/vk/bindflow/internal/entity"
	"github.com/vk/bindflow/internal/worker"
)

// defaultDebounce coalesces the event bursts editors produce on save.
const defaultDebounce = 100 * time.Millisecond

// Watcher reloads one page file on change.
type Watcher struct {
	path     string
	worker   *worker.Worker
	debounce time.Duration
}

// New returns a watcher for the page file at path, feeding w.
func New(path string, w *worker.Worker) *Watcher {
	return &Watcher{path: path, worker: w, debounce: defaultDebounce}
}

// Run watches the page file until ctx is cancelled. Write, create, and
// rename events targeting the file trigger, after a debounce window, a
// reload and an incremental evaluation pass. A page that fails to load or
// evaluate is logged and skipped; watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	// Watch the directory: editors commonly save via rename-and-replace,
	// which drops a watch placed on the file itself.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	logger.Info("Watching page file.", "path", w.path)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.matches(event) {
				continue
			}
			logger.Debug("Page file event.", "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) matches(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != filepath.Base(w.path) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) reload(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	page, err := entity.LoadPage(w.path)
	if err != nil {
		logger.Warn("Page reload failed.", "path", w.path, "error", err)
		return
	}

	res, err := w.worker.UpdateTree(ctx, page)
	if err != nil {
		logger.Warn("Page re-evaluation failed.", "error", err)
		return
	}

	logger.Info("Page re-evaluated.",
		"updated_paths", len(res.UpdatedPaths),
		"errors", len(res.Errors),
	)
	for _, p := range res.UpdatedPaths {
		logger.Debug("Path updated.", "path", p)
	}
	for _, e := range res.Errors {
		logger.Warn("Binding failed.", "path", e.Path, "error", e.Message)
	}
}

package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/metaedit/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of EventCreated, EventUpdated, EventDeleted.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the library root and keeps idx in
// step with JPEG changes until ctx is cancelled. It calls cb (if non-nil)
// after each index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, idx *Index, store storage.Provider, load Loader, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, store, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(idx, store, load, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if store.SkipDir(info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, store, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Photos moved in with the directory produce no events.
					scheduleReconcile()
					continue
				}
			}

			if !storage.IsImage(absPath) {
				continue
			}
			rel, relErr := store.Rel(absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if kind, ok := refresh(idx, load, logger, rel); ok {
					notify(kind, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if idx.Remove(rel) {
					logger.Debug("watcher: removed", slog.String("path", rel))
					notify(EventDeleted, rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path arrives as a separate Create event if it stays
				// within a watched dir.
				if idx.Remove(rel) {
					logger.Debug("watcher: rename old removed", slog.String("path", rel))
					notify(EventDeleted, rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// refresh re-decodes rel into idx. A file that no longer decodes (for
// example a half-written copy) is dropped from the index until a later
// event brings it back.
func refresh(idx *Index, load Loader, logger *slog.Logger, rel string) (string, bool) {
	r, err := load(rel)
	if err != nil {
		logger.Warn("watcher: decode failed", slog.String("path", rel), slog.String("error", err.Error()))
		if idx.Remove(rel) {
			return EventDeleted, true
		}
		return "", false
	}
	r.Path = rel
	if idx.Put(r) {
		logger.Debug("watcher: indexed", slog.String("path", rel))
		return EventCreated, true
	}
	logger.Debug("watcher: reindexed", slog.String("path", rel))
	return EventUpdated, true
}

// reconcile removes index entries without a file on disk and indexes
// on-disk photos that are missing from the index.
func reconcile(idx *Index, store storage.Provider, load Loader, logger *slog.Logger, notify EventCallback) {
	paths, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		disk[p] = struct{}{}
	}

	indexed := make(map[string]struct{}, idx.Len())
	for _, p := range idx.Paths() {
		indexed[p] = struct{}{}
		if _, ok := disk[p]; !ok && idx.Remove(p) {
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			notify(EventDeleted, p)
		}
	}

	for _, p := range paths {
		if _, ok := indexed[p]; ok {
			continue
		}
		if kind, ok := refresh(idx, load, logger, p); ok {
			notify(kind, p)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// except directories the store skips.
func addDirsRecursive(w *fsnotify.Watcher, store storage.Provider, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != store.Root() && store.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

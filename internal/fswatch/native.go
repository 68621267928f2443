package fswatch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/laofahai/linch-mind-sub000/internal/filter"
	"github.com/laofahai/linch-mind-sub000/internal/monitor"
)

// addNativeWatches walks every registered path and adds each directory
// (fsnotify only watches directories; file-level events surface as
// events on their containing directory) — the same recursive-add
// idiom the teacher's watcher uses, generalized to multiple roots.
func (w *Watcher) addNativeWatches() error {
	w.mu.Lock()
	roots := make([]*pathState, 0, len(w.paths))
	for _, st := range w.paths {
		roots = append(roots, st)
	}
	w.mu.Unlock()

	for _, st := range roots {
		if err := w.addRecursive(st); err != nil {
			return err
		}
	}
	return nil
}

// addRecursive walks st's root and adds a native watch on every
// surviving directory. Directories named in exclude_directories are
// hard-pruned from the walk (spec.md §3) rather than merely filtered
// out of their descendants' events afterward.
func (w *Watcher) addRecursive(st *pathState) error {
	root := st.cfg.Path
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if p != root && !st.cfg.Recursive {
			return filepath.SkipDir
		}
		if filter.QuickIgnore(p + "/") {
			return filepath.SkipDir
		}
		if p != root && st.chain.ExcludesDir(filepath.Base(p)) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(p)
	})
}

// rebuildNativeStream implements "re-adding a path while running
// recreates the native stream atomically": stop, rebuild, start.
func (w *Watcher) rebuildNativeStream() error {
	w.mu.Lock()
	old := w.fsWatcher
	w.mu.Unlock()

	fresh, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.fsWatcher = fresh
	w.mu.Unlock()

	if err := w.addNativeWatches(); err != nil {
		_ = fresh.Close()
		w.mu.Lock()
		w.fsWatcher = old
		w.mu.Unlock()
		return err
	}

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (w *Watcher) nativeLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleNativeEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.WithError(err).WithField("component", "fswatch").Warn("native event source error")
			}

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleNativeEvent(event fsnotify.Event) {
	st, matched := w.configFor(event.Name)
	if !matched {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && st.cfg.Recursive {
			if !st.chain.ExcludesDir(filepath.Base(event.Name)) {
				_ = w.fsWatcher.Add(event.Name)
			}
		}
	}

	isDir := false
	var fileSize int64
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
		fileSize = info.Size()
	}

	if !st.chain.Allow(event.Name, isDir) {
		w.mu.Lock()
		w.stats.EventsFiltered++
		w.mu.Unlock()
		if !isDir && st.cfg.MaxFileSize > 0 && fileSize > st.cfg.MaxFileSize && w.logger != nil {
			w.logger.WithFields(logrus.Fields{
				"component": "fswatch",
				"path":      event.Name,
				"size":      humanize.Bytes(uint64(fileSize)),
				"limit":     humanize.Bytes(uint64(st.cfg.MaxFileSize)),
			}).Debug("skipping oversized file")
		}
		return
	}

	kind := translateOp(event.Op)
	if kind == monitor.KindUnknown {
		return
	}

	if w.debouncer == nil {
		return
	}
	_ = w.debouncer.Submit(monitor.FileSystemEvent{
		Path:      event.Name,
		Kind:      kind,
		Timestamp: time.Now(),
	})
}

// translateOp maps fsnotify's cross-platform Op bitmask onto the
// normalized FileEventKind set. fsnotify itself absorbs the
// FSEvents/inotify/ReadDirectoryChangesW translation; this is the one
// further translation spec.md §4.7 asks for (e.g. Rename → modified,
// since fsnotify does not pair rename halves across platforms).
func translateOp(op fsnotify.Op) monitor.FileEventKind {
	switch {
	case op&fsnotify.Remove != 0:
		return monitor.KindDeleted
	case op&fsnotify.Create != 0:
		return monitor.KindCreated
	case op&fsnotify.Rename != 0:
		return monitor.KindModified
	case op&fsnotify.Write != 0, op&fsnotify.Chmod != 0:
		return monitor.KindModified
	default:
		return monitor.KindUnknown
	}
}

package fswatch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/laofahai/linch-mind-sub000/internal/monitor"
)

// startPolling is the "always works" fallback (spec.md §9): a
// per-path directory scan tracking mtime+size, applying the same
// filter chain and debouncer as the native path.
func (w *Watcher) startPolling() error {
	w.wg.Add(1)
	go w.pollLoop()
	return nil
}

func (w *Watcher) pollLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()

	w.scanOnce()

	for {
		select {
		case <-ticker.C:
			w.scanOnce()
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scanOnce() {
	w.mu.Lock()
	roots := make([]*pathState, 0, len(w.paths))
	for _, st := range w.paths {
		roots = append(roots, st)
	}
	w.mu.Unlock()

	for _, st := range roots {
		w.scanRoot(st)
	}
}

func (w *Watcher) scanRoot(st *pathState) {
	_ = filepath.Walk(st.cfg.Path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if p != st.cfg.Path && !st.cfg.Recursive && info.IsDir() {
			return filepath.SkipDir
		}
		if info.IsDir() {
			if p != st.cfg.Path && st.chain.ExcludesDir(filepath.Base(p)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !st.chain.Allow(p, false) {
			return nil
		}

		w.mu.Lock()
		prev, seen := w.pollState[p]
		w.pollState[p] = pollEntry{size: info.Size(), modTime: info.ModTime()}
		w.mu.Unlock()

		if !seen {
			w.submitPoll(p, monitor.KindCreated)
			return nil
		}
		if prev.size != info.Size() || !prev.modTime.Equal(info.ModTime()) {
			w.submitPoll(p, monitor.KindModified)
		}
		return nil
	})
}

func (w *Watcher) submitPoll(path string, kind monitor.FileEventKind) {
	if w.debouncer == nil {
		return
	}
	_ = w.debouncer.Submit(monitor.FileSystemEvent{
		Path:      path,
		Kind:      kind,
		Timestamp: time.Now(),
	})
}

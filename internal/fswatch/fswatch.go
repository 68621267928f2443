// Package fswatch implements monitor.Monitor over fsnotify (which
// wraps FSEvents on macOS, inotify on Linux, and
// ReadDirectoryChangesW on Windows), with a polling fallback when the
// native source cannot be constructed (spec.md §4.7).
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/laofahai/linch-mind-sub000/internal/debounce"
	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
	"github.com/laofahai/linch-mind-sub000/internal/filter"
	"github.com/laofahai/linch-mind-sub000/internal/monitor"
)

// DefaultCheckInterval is the batch flush period used when
// SetBatchCallback is given a non-positive interval; pollTick is the
// polling fallback's scan period.
const (
	DefaultCheckInterval = 2 * time.Second
	pollTick             = 500 * time.Millisecond
)

type pathState struct {
	cfg   monitor.Config
	chain *filter.Chain
}

type pollEntry struct {
	size    int64
	modTime time.Time
}

// Watcher is the production Monitor implementation.
type Watcher struct {
	logger *logrus.Logger

	mu          sync.Mutex
	paths       map[string]*pathState
	fsWatcher   *fsnotify.Watcher
	usePolling  bool
	pollState   map[string]pollEntry
	running     bool
	startedAt   time.Time

	debouncer *debounce.Debouncer

	callback      func(monitor.FileSystemEvent)
	batchCallback func([]monitor.FileSystemEvent)
	batchInterval time.Duration
	batchMu       sync.Mutex
	batchPending  []monitor.FileSystemEvent

	stats monitor.Statistics

	done chan struct{}
	wg   sync.WaitGroup

	stopOnce sync.Once
}

// New constructs a Watcher. If the native fsnotify source cannot be
// built, it falls back to polling and records the platform note in
// Statistics.PlatformInfo rather than failing (spec.md §4.7).
func New(logger *logrus.Logger) *Watcher {
	w := &Watcher{
		logger:    logger,
		paths:     make(map[string]*pathState),
		pollState: make(map[string]pollEntry),
		done:      make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.usePolling = true
		w.stats.PlatformInfo = fmt.Sprintf("%s/polling (native unavailable: %v)", runtime.GOOS, err)
		if logger != nil {
			logger.WithError(err).WithField("component", "fswatch").Warn("native monitor unavailable, falling back to polling")
		}
	} else {
		w.fsWatcher = fsw
		w.stats.PlatformInfo = runtime.GOOS
	}

	return w
}

// AddPath validates and registers a watch rule. If the watcher is
// already running, the native stream is rebuilt atomically (stop,
// rebuild, start) to pick up the new path.
func (w *Watcher) AddPath(cfg monitor.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	info, err := os.Stat(cfg.Path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("path %s: %w", cfg.Path, runtimeerrors.ErrInvalidPath)
	}

	chain := filter.NewChain(filter.Config{
		ExcludeDirectories: cfg.ExcludeDirectories,
		ExcludePatterns:    cfg.ExcludePatterns,
		IncludeExtensions:  cfg.IncludeExtensions,
		MaxFileSize:        cfg.MaxFileSize,
	}, statProbe)

	w.mu.Lock()
	wasRunning := w.running
	w.paths[cfg.Path] = &pathState{cfg: cfg, chain: chain}
	w.mu.Unlock()

	if wasRunning && !w.usePolling {
		return w.rebuildNativeStream()
	}
	if wasRunning {
		return nil
	}
	return nil
}

// RemovePath drops a previously added watch rule.
func (w *Watcher) RemovePath(path string) error {
	w.mu.Lock()
	_, ok := w.paths[path]
	delete(w.paths, path)
	wasRunning := w.running
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("path %s not monitored: %w", path, runtimeerrors.ErrInvalidPath)
	}
	if wasRunning && !w.usePolling {
		return w.rebuildNativeStream()
	}
	return nil
}

// Start launches the native or polling event source plus the shared
// debouncer and begins delivering survivors to callback (or, once
// SetBatchCallback is called, to the batch sender).
func (w *Watcher) Start(callback func(monitor.FileSystemEvent)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.callback = callback
	w.running = true
	w.startedAt = time.Now()
	w.stats.StartTime = w.startedAt
	w.stats.IsRunning = true
	w.mu.Unlock()

	w.debouncer = debounce.New(debounce.Config{}, w.onDelivery)
	w.debouncer.Start()

	w.mu.Lock()
	batchCB, batchInterval := w.batchCallback, w.batchInterval
	w.mu.Unlock()
	if batchCB != nil {
		w.wg.Add(1)
		go w.batchLoop(batchInterval)
	}

	if w.usePolling {
		if err := w.startPolling(); err != nil {
			return err
		}
	} else {
		if err := w.addNativeWatches(); err != nil {
			return err
		}
		w.wg.Add(1)
		go w.nativeLoop()
	}

	return nil
}

// SetBatchCallback switches delivery to batched mode: survivors
// accumulate and flush every interval as a single slice.
func (w *Watcher) SetBatchCallback(cb func([]monitor.FileSystemEvent), interval time.Duration) {
	w.mu.Lock()
	w.batchCallback = cb
	w.batchInterval = interval
	running := w.running
	w.mu.Unlock()

	if running && cb != nil {
		w.wg.Add(1)
		go w.batchLoop(interval)
	}
}

func (w *Watcher) batchLoop(interval time.Duration) {
	defer w.wg.Done()
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flushBatch()
		case <-w.done:
			w.flushBatch()
			return
		}
	}
}

func (w *Watcher) flushBatch() {
	w.batchMu.Lock()
	if len(w.batchPending) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batchPending
	w.batchPending = nil
	w.batchMu.Unlock()

	w.mu.Lock()
	cb := w.batchCallback
	w.mu.Unlock()
	if cb != nil {
		cb(batch)
	}
}

// onDelivery is the debouncer's handler: apply size/is_directory
// enrichment lazily, then route to per-event or batch delivery.
func (w *Watcher) onDelivery(d debounce.Delivery) {
	event, ok := d.Event.(monitor.FileSystemEvent)
	if !ok {
		return
	}

	if info, err := os.Stat(event.Path); err == nil {
		event.IsDirectory = info.IsDir()
		event.FileSize = info.Size()
	}

	w.mu.Lock()
	w.stats.EventsProcessed++
	w.mu.Unlock()

	w.mu.Lock()
	hasBatch := w.batchCallback != nil
	cb := w.callback
	w.mu.Unlock()

	if hasBatch {
		w.batchMu.Lock()
		w.batchPending = append(w.batchPending, event)
		w.batchMu.Unlock()
		return
	}

	if cb != nil {
		w.safeInvoke(cb, event)
	}
}

func (w *Watcher) safeInvoke(cb func(monitor.FileSystemEvent), event monitor.FileSystemEvent) {
	defer func() {
		if r := recover(); r != nil && w.logger != nil {
			w.logger.WithField("component", "fswatch").Errorf("callback panic: %v", r)
		}
	}()
	cb(event)
}

// Statistics returns a snapshot of the watcher's counters.
func (w *Watcher) Statistics() monitor.Statistics {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := w.stats
	stats.PathsMonitored = len(w.paths)
	return stats
}

// Stop halts all goroutines, flushes the debouncer, and releases
// native handles. Idempotent.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()

		if w.debouncer != nil {
			w.debouncer.Stop()
		}
		w.flushBatch()

		if w.fsWatcher != nil {
			err = w.fsWatcher.Close()
		}

		w.mu.Lock()
		w.running = false
		w.stats.IsRunning = false
		w.mu.Unlock()
	})
	return err
}

func statProbe(path string) (int64, bool) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return 0, false
	}
	return info.Size(), true
}

func (w *Watcher) configFor(path string) (*pathState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root, st := range w.paths {
		if path == root || filepath.Dir(path) == root {
			return st, true
		}
		if st.cfg.Recursive && isWithin(root, path) {
			return st, true
		}
	}
	return nil, false
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasParentEscape(rel)
}

func filepathHasParentEscape(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

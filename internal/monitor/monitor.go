// Package monitor defines the event-producer contract every
// filesystem (or future) monitor implements, and the data types that
// flow through it (spec.md §3, §4.7).
package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
)

// FileEventKind is the normalized event kind every native backend maps
// its platform-specific flags onto.
type FileEventKind string

const (
	KindCreated    FileEventKind = "created"
	KindModified   FileEventKind = "modified"
	KindDeleted    FileEventKind = "deleted"
	KindRenamedOld FileEventKind = "renamed_old"
	KindRenamedNew FileEventKind = "renamed_new"
	KindUnknown    FileEventKind = "unknown"
)

// FileSystemEvent is the internal representation produced by a
// monitor, before translation to ConnectorEvent.
type FileSystemEvent struct {
	Path        string
	OldPath     string
	Kind        FileEventKind
	IsDirectory bool
	FileSize    int64
	Timestamp   time.Time
}

// Key satisfies debounce.Event: the coalescing key is the path.
func (e FileSystemEvent) Key() string { return e.Path }

// IsDelete satisfies debounce.Event.
func (e FileSystemEvent) IsDelete() bool { return e.Kind == KindDeleted }

// Validate enforces the old_path invariant from spec.md §3.
func (e FileSystemEvent) Validate() error {
	isRename := e.Kind == KindRenamedOld || e.Kind == KindRenamedNew
	if isRename && e.OldPath == "" {
		return fmt.Errorf("rename event missing old_path")
	}
	if !isRename && e.OldPath != "" {
		return fmt.Errorf("non-rename event %s must not carry old_path", e.Kind)
	}
	return nil
}

// ConnectorEvent is the unit of information pushed to the daemon.
type ConnectorEvent struct {
	ConnectorID string          `json:"connector_id"`
	EventType   string          `json:"event_type"`
	EventData   json.RawMessage `json:"event_data"`
	Timestamp   time.Time       `json:"timestamp"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// FromFileSystemEvent translates an internal event into the
// wire-facing ConnectorEvent submitted to the daemon.
func FromFileSystemEvent(connectorID string, e FileSystemEvent) (ConnectorEvent, error) {
	data, err := json.Marshal(struct {
		Path        string `json:"path"`
		OldPath     string `json:"old_path,omitempty"`
		IsDirectory bool   `json:"is_directory"`
		FileSize    int64  `json:"file_size"`
	}{
		Path:        e.Path,
		OldPath:     e.OldPath,
		IsDirectory: e.IsDirectory,
		FileSize:    e.FileSize,
	})
	if err != nil {
		return ConnectorEvent{}, fmt.Errorf("encoding event data: %w", err)
	}

	return ConnectorEvent{
		ConnectorID: connectorID,
		EventType:   string(e.Kind),
		EventData:   data,
		Timestamp:   e.Timestamp,
	}, nil
}

// Config is a per-path watch rule (spec.md §3 MonitorConfig).
type Config struct {
	Path               string
	Recursive          bool
	IncludeExtensions  []string
	ExcludePatterns    []string
	ExcludeDirectories []string
	MaxFileSize        int64
	WatchFiles         bool
	WatchDirectories   bool
	CheckInterval      time.Duration
}

// Validate enforces the MonitorConfig invariants: at least one of
// watch_files/watch_directories, and a positive max_file_size.
func (c Config) Validate() error {
	if !c.WatchFiles && !c.WatchDirectories {
		return fmt.Errorf("config for %s: %w", c.Path, runtimeerrors.ErrInvalidPath)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("config for %s: max_file_size must be > 0: %w", c.Path, runtimeerrors.ErrInvalidPath)
	}
	return nil
}

// Statistics are a monitor's exported counters (spec.md §3).
type Statistics struct {
	EventsProcessed uint64
	EventsFiltered  uint64
	PathsMonitored  int
	PlatformInfo    string
	StartTime       time.Time
	IsRunning       bool
}

// Monitor is the uniform contract every event producer exposes
// (spec.md §4.7): a native filesystem watcher today, potentially other
// producers later.
type Monitor interface {
	Start(callback func(FileSystemEvent)) error
	Stop() error
	AddPath(cfg Config) error
	RemovePath(path string) error
	SetBatchCallback(cb func([]FileSystemEvent), interval time.Duration)
	Statistics() Statistics
}

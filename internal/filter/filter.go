// Package filter implements the two-stage path filter chain applied
// before debouncing (spec.md §4.7): a built-in quick-ignore blocklist,
// then config-driven directory/pattern/extension/size rules.
package filter

import (
	"path/filepath"
	"strings"
)

// quickIgnoreSubstrings is the built-in blocklist of development and
// system noise, checked against the full path as substrings.
var quickIgnoreSubstrings = []string{
	".git/",
	"node_modules/",
	"__pycache__/",
	".DS_Store",
	"Thumbs.db",
	".Trash/",
	"$RECYCLE.BIN",
	".idea/",
	".vscode/",
	"~$",
	".swp",
	".bak",
}

// QuickIgnore reports whether path matches the built-in noise
// blocklist: a substring hit, or a hidden (".") leaf name.
func QuickIgnore(path string) bool {
	for _, substr := range quickIgnoreSubstrings {
		if strings.Contains(path, substr) {
			return true
		}
	}
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// Config is the config-driven stage of the chain (spec.md §3 MonitorConfig).
type Config struct {
	ExcludeDirectories []string
	ExcludePatterns    []string
	IncludeExtensions  []string
	MaxFileSize        int64
}

// SizeProber resolves a path's size if it currently exists on disk.
type SizeProber func(path string) (size int64, exists bool)

// Chain evaluates a path against both filter stages.
type Chain struct {
	excludeDirs map[string]struct{}
	patterns    []string
	includeExts map[string]struct{}
	maxFileSize int64
	probe       SizeProber
}

// NewChain builds a Chain from config. probe may be nil, in which case
// the size rule is skipped.
func NewChain(cfg Config, probe SizeProber) *Chain {
	c := &Chain{
		excludeDirs: toSet(cfg.ExcludeDirectories),
		patterns:    cfg.ExcludePatterns,
		includeExts: toSet(lower(cfg.IncludeExtensions)),
		maxFileSize: cfg.MaxFileSize,
		probe:       probe,
	}
	return c
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func lower(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// Allow runs both filter stages for path. Directories are never subject
// to the extension/size rules (those apply to files).
func (c *Chain) Allow(path string, isDir bool) bool {
	if QuickIgnore(path) {
		return false
	}

	if c.underExcludedDir(path) {
		return false
	}

	for _, pattern := range c.patterns {
		if strings.Contains(path, pattern) {
			return false
		}
	}

	if isDir {
		return true
	}

	if len(c.includeExts) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := c.includeExts[ext]; !ok {
			return false
		}
	}

	if c.maxFileSize > 0 && c.probe != nil {
		if size, exists := c.probe(path); exists && size > c.maxFileSize {
			return false
		}
	}

	return true
}

// ExcludesDir reports whether name (a directory's base name, not a full
// path) is in the configured exclude_directories set. Exposed so the
// native watcher can prune excluded directories from a recursive walk
// and from lazy subdirectory re-add, rather than only filtering their
// descendants' events after the fact.
func (c *Chain) ExcludesDir(name string) bool {
	_, excluded := c.excludeDirs[name]
	return excluded
}

// underExcludedDir reports whether any ancestor directory of path
// (spec.md §3: exclude_directories are "hard-pruned", not just checked
// against the immediate parent) is in the exclude_directories set.
func (c *Chain) underExcludedDir(path string) bool {
	if len(c.excludeDirs) == 0 {
		return false
	}
	dir := filepath.Dir(path)
	for {
		if c.ExcludesDir(filepath.Base(dir)) {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// Command connector is a demonstration filesystem connector built on
// internal/connector and internal/fswatch: it watches a configured set
// of paths and forwards change events to the daemon.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	cli3 "github.com/urfave/cli/v3"

	"github.com/laofahai/linch-mind-sub000/internal/cli"
	"github.com/laofahai/linch-mind-sub000/internal/config"
	"github.com/laofahai/linch-mind-sub000/internal/connector"
	"github.com/laofahai/linch-mind-sub000/internal/fswatch"
	"github.com/laofahai/linch-mind-sub000/internal/monitor"
)

const connectorID = "filesystem-connector"

func main() {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(os.Getenv("LINCH_MIND_LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	root := cli.BuildRootCommand(connectorID, "Filesystem Connector")
	root.Action = func(ctx context.Context, cmd *cli3.Command) error {
		return runConnector(cmd.Root().String("environment"), logger)
	}

	args := cli.SanitizeArgs(os.Args)
	if err := root.Run(context.Background(), args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runConnector(env string, logger *logrus.Logger) error {
	hooks := &filesystemHooks{logger: logger}
	c := connector.New(connector.Options{
		ConnectorID: connectorID,
		DisplayName: "Filesystem Connector",
		ClientType:  "connector",
		Environment: env,
		Logger:      logger,
	}, hooks)

	return c.Run()
}

// filesystemHooks wires a fswatch.Watcher, configured from the daemon
// config cache, into the base connector lifecycle.
type filesystemHooks struct {
	logger *logrus.Logger

	watchPaths    []string
	recursive     bool
	extensions    []string
	excludeDirs   []string
	excludeGlobs  []string
	maxFileSize   int64
	checkInterval int
}

func (h *filesystemHooks) LoadConnectorConfig(cfg *config.Cache) error {
	h.watchPaths = cfg.GetExpandedPaths("watch_paths", []string{"~"})
	h.recursive = cfg.GetBool("recursive", true)
	h.extensions = cfg.GetStringSlice("include_extensions", nil)
	h.excludeDirs = cfg.GetStringSlice("exclude_directories", []string{".git", "node_modules", ".venv"})
	h.excludeGlobs = cfg.GetStringSlice("exclude_patterns", nil)
	h.maxFileSize = int64(cfg.GetInt("max_file_size_bytes", 10*1024*1024))
	return nil
}

func (h *filesystemHooks) CreateMonitor(cfg *config.Cache) (monitor.Monitor, error) {
	w := fswatch.New(h.logger)

	for _, path := range h.watchPaths {
		mc := monitor.Config{
			Path:               path,
			Recursive:          h.recursive,
			IncludeExtensions:  h.extensions,
			ExcludeDirectories: h.excludeDirs,
			ExcludePatterns:    h.excludeGlobs,
			MaxFileSize:        h.maxFileSize,
			WatchFiles:         true,
			WatchDirectories:   true,
		}
		if err := w.AddPath(mc); err != nil {
			h.logger.WithError(err).WithField("path", path).Warn("skipping unwatchable path")
		}
	}

	return w, nil
}

func (h *filesystemHooks) OnInitialize() error { return nil }
func (h *filesystemHooks) OnStart() error      { return nil }
func (h *filesystemHooks) OnStop() error       { return nil }

// Package cli builds the per-connector command surface (spec.md §6):
// --version, --help, and a handful of discovery/status demo
// subcommands shared by every connector binary.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	cli3 "github.com/urfave/cli/v3"

	"github.com/laofahai/linch-mind-sub000/internal/discovery"
	"github.com/laofahai/linch-mind-sub000/internal/version"
)

var knownRootFlags = map[string]struct{}{
	"--version": {}, "-v": {},
	"--help": {}, "-h": {},
	"--environment": {},
}

// BuildRootCommand builds the root command for a connector binary.
// name is the connector's process name (e.g. "filesystem-connector").
func BuildRootCommand(name, displayName string) *cli3.Command {
	return &cli3.Command{
		Name:    name,
		Usage:   fmt.Sprintf("%s — a linch-mind data-source connector", displayName),
		Version: version.GetVersion(),
		Flags: []cli3.Flag{
			&cli3.StringFlag{
				Name:  "environment",
				Usage: "Daemon environment (default: development, or $LINCH_MIND_ENVIRONMENT)",
				Value: discovery.EnvironmentName(),
			},
		},
		Commands: []*cli3.Command{
			buildVersionCommand(),
			buildDiscoverCommand(),
			buildWaitCommand(),
			buildStatusCommand(),
		},
		EnableShellCompletion: true,
		Suggest:               true,
	}
}

// SanitizeArgs strips unrecognized flags that appear before the first
// subcommand, logging a warning and continuing rather than failing
// (spec.md §6: "Unknown flags emit a warning and continue"). Flags
// appearing at or after the first subcommand are left untouched —
// their validation belongs to that subcommand, not the root.
func SanitizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	sawSubcommand := false

	for i, arg := range args {
		if i == 0 || sawSubcommand || !strings.HasPrefix(arg, "-") {
			if i > 0 && !strings.HasPrefix(arg, "-") {
				sawSubcommand = true
			}
			out = append(out, arg)
			continue
		}

		name := strings.SplitN(arg, "=", 2)[0]
		if _, known := knownRootFlags[name]; !known {
			fmt.Fprintf(os.Stderr, "warning: unrecognized flag %q, ignoring\n", arg)
			continue
		}
		out = append(out, arg)
	}
	return out
}

func buildVersionCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "version",
		Usage: "Show version information and exit",
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			fmt.Println(version.GetVersion())
			return nil
		},
	}
}

// styledLabel renders key as a bold label when stdout is a TTY, and
// plain text otherwise (spec.md explicitly excludes any interactive
// GUI/TUI; this is one-shot styled output only).
func styledLabel(key string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return key + ":"
	}
	style := lipgloss.NewStyle().Bold(true)
	return style.Render(key + ":")
}

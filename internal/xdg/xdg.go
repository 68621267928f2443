// Package xdg resolves the current user's home directory in a way that
// works uniformly across POSIX systems and Windows.
package xdg

import (
	"os"

	"github.com/adrg/xdg"
)

// Home returns the current user's home directory. It prefers the
// adrg/xdg resolution (which already reads $HOME / %USERPROFILE% and
// falls back to platform APIs when unset) and falls back to
// os.UserHomeDir if that's somehow empty.
func Home() (string, error) {
	if xdg.Home != "" {
		return xdg.Home, nil
	}
	return os.UserHomeDir()
}

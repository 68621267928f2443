// Package validation holds small path-expansion helpers used by the
// config loader.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
)

// ExpandPath expands a leading "~" to the user's home directory (the
// rest of such a path is joined as is, without environment variable
// expansion). Any other path has its environment variable references
// expanded and is returned as an absolute path.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}

		if len(path) == 1 {
			return homeDir, nil
		}
		if path[1] != '/' {
			return "", fmt.Errorf("invalid path: paths starting with ~ must be followed by /, got: %s", path)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	expanded := os.ExpandEnv(path)
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("converting to absolute path: %w", err)
	}
	return abs, nil
}

// Package platform detects the host operating system and the socket
// family the IPC transport should use on it.
package platform

import (
	"os"
	"runtime"
	"strings"
)

// Platform represents the detected platform type.
type Platform string

const (
	PlatformDarwin  Platform = "darwin"
	PlatformLinux   Platform = "linux"
	PlatformWSL     Platform = "wsl"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// SocketType represents the IPC transport family spec.md §4.1 names.
type SocketType string

const (
	SocketUnix SocketType = "unix"
	SocketPipe SocketType = "pipe"
)

// Detect detects the current platform.
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformDarwin
	case "linux":
		if IsWSL() {
			return PlatformWSL
		}
		return PlatformLinux
	case "windows":
		return PlatformWindows
	default:
		return PlatformUnknown
	}
}

// SocketTypeFor returns the socket family discovery should use for p.
func SocketTypeFor(p Platform) SocketType {
	if p == PlatformWindows {
		return SocketPipe
	}
	return SocketUnix
}

// IsWSL detects if the current environment is WSL (Windows Subsystem
// for Linux) by checking the environment variable Microsoft sets and,
// failing that, the two /proc files that mention "microsoft"/"wsl".
func IsWSL() bool {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return true
	}

	if version, err := os.ReadFile("/proc/version"); err == nil {
		v := strings.ToLower(string(version))
		if strings.Contains(v, "microsoft") || strings.Contains(v, "wsl") {
			return true
		}
	}

	if osrelease, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		v := strings.ToLower(string(osrelease))
		if strings.Contains(v, "microsoft") || strings.Contains(v, "wsl") {
			return true
		}
	}

	return false
}

package platform

import (
	"os"
	"runtime"
	"testing"
)

func TestDetectMatchesRuntimeGOOS(t *testing.T) {
	p := Detect()

	switch runtime.GOOS {
	case "darwin":
		if p != PlatformDarwin {
			t.Errorf("Detect() = %v, want %v", p, PlatformDarwin)
		}
	case "linux":
		if p != PlatformLinux && p != PlatformWSL {
			t.Errorf("Detect() = %v, want %v or %v", p, PlatformLinux, PlatformWSL)
		}
	case "windows":
		if p != PlatformWindows {
			t.Errorf("Detect() = %v, want %v", p, PlatformWindows)
		}
	}
}

func TestSocketTypeFor(t *testing.T) {
	tests := []struct {
		platform Platform
		want     SocketType
	}{
		{PlatformDarwin, SocketUnix},
		{PlatformLinux, SocketUnix},
		{PlatformWSL, SocketUnix},
		{PlatformWindows, SocketPipe},
	}

	for _, tt := range tests {
		if got := SocketTypeFor(tt.platform); got != tt.want {
			t.Errorf("SocketTypeFor(%v) = %v, want %v", tt.platform, got, tt.want)
		}
	}
}

func TestIsWSLHonorsEnvVar(t *testing.T) {
	original := os.Getenv("WSL_DISTRO_NAME")
	defer func() {
		if original != "" {
			os.Setenv("WSL_DISTRO_NAME", original)
		} else {
			os.Unsetenv("WSL_DISTRO_NAME")
		}
	}()

	os.Setenv("WSL_DISTRO_NAME", "Ubuntu")
	if !IsWSL() {
		t.Error("IsWSL() = false, want true when WSL_DISTRO_NAME is set")
	}
}

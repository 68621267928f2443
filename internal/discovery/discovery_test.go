package discovery

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
)

func TestEnvironmentNameDefault(t *testing.T) {
	old, had := os.LookupEnv(EnvironmentVar)
	os.Unsetenv(EnvironmentVar)
	defer func() {
		if had {
			os.Setenv(EnvironmentVar, old)
		}
	}()

	if got := EnvironmentName(); got != DefaultEnvironment {
		t.Errorf("EnvironmentName() = %q, want %q", got, DefaultEnvironment)
	}
}

func TestEnvironmentNameFromEnvVar(t *testing.T) {
	old, had := os.LookupEnv(EnvironmentVar)
	os.Setenv(EnvironmentVar, "staging")
	defer func() {
		if had {
			os.Setenv(EnvironmentVar, old)
		} else {
			os.Unsetenv(EnvironmentVar)
		}
	}()

	if got := EnvironmentName(); got != "staging" {
		t.Errorf("EnvironmentName() = %q, want %q", got, "staging")
	}
}

func TestDiscoverDerivesDeterministicPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	ep, err := Discover("development", nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if ep.Environment != "development" {
		t.Errorf("Environment = %q, want %q", ep.Environment, "development")
	}
	if ep.Reachable {
		t.Errorf("Reachable = true, want false (no daemon listening)")
	}
	if ep.SocketPath == "" {
		t.Errorf("SocketPath is empty")
	}
}

func TestDiscoverReachableWhenSocketListening(t *testing.T) {
	if os.Getenv("GOOS") == "windows" {
		t.Skip("unix socket test")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	sockPath := filepath.Join(home, ".linch-mind", "development", "data", "daemon.socket")
	if err := os.MkdirAll(filepath.Dir(sockPath), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	ep, err := Discover("development", logrus.New())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if !ep.Reachable {
		t.Errorf("Reachable = false, want true (listener is up at %s)", sockPath)
	}
}

func TestWaitForDaemonTimesOut(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	_, err := WaitForDaemon(context.Background(), "development", 300*time.Millisecond, nil)
	if err == nil {
		t.Fatalf("WaitForDaemon() error = nil, want timeout error")
	}
	if !errors.Is(err, runtimeerrors.ErrDaemonUnreachable) {
		t.Errorf("WaitForDaemon() error = %v, want ErrDaemonUnreachable", err)
	}
}

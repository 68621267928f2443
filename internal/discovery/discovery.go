// Package discovery locates the daemon's IPC endpoint from a
// well-known per-environment directory and probes its reachability.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
	"github.com/laofahai/linch-mind-sub000/internal/platform"
	"github.com/laofahai/linch-mind-sub000/internal/xdg"
)

// DefaultEnvironment is used when LINCH_MIND_ENVIRONMENT is unset.
const DefaultEnvironment = "development"

// EnvironmentVar is the environment variable that selects the
// per-environment endpoint subdirectory.
const EnvironmentVar = "LINCH_MIND_ENVIRONMENT"

// Endpoint describes a daemon IPC endpoint: where to dial it, what
// family, and whether the last probe found it reachable.
type Endpoint struct {
	SocketType  platform.SocketType
	SocketPath  string
	Environment string
	Reachable   bool
}

// EnvironmentName returns the environment this process should discover,
// defaulting to DefaultEnvironment when LINCH_MIND_ENVIRONMENT is unset.
func EnvironmentName() string {
	if v := os.Getenv(EnvironmentVar); v != "" {
		return v
	}
	return DefaultEnvironment
}

// endpointPath derives the deterministic socket/pipe path for env,
// per spec.md §4.1.
func endpointPath(env string) (platform.SocketType, string, error) {
	socketType := platform.SocketTypeFor(platform.Detect())

	if socketType == platform.SocketPipe {
		home, err := xdg.Home()
		if err != nil {
			return "", "", runtimeerrors.Wrap(err, "resolving USERPROFILE")
		}
		return platform.SocketPipe, filepath.Join(home, ".linch-mind", env, "daemon.pipe"), nil
	}

	home, err := xdg.Home()
	if err != nil {
		return "", "", runtimeerrors.Wrap(err, "resolving HOME")
	}
	return platform.SocketUnix, filepath.Join(home, ".linch-mind", env, "data", "daemon.socket"), nil
}

// Discover derives the daemon endpoint for env and probes it once for
// reachability by opening and immediately closing a client connection.
func Discover(env string, logger *logrus.Logger) (*Endpoint, error) {
	socketType, socketPath, err := endpointPath(env)
	if err != nil {
		return nil, err
	}

	ep := &Endpoint{
		SocketType:  socketType,
		SocketPath:  socketPath,
		Environment: env,
	}
	ep.Reachable = probe(ep)

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"component":   "discovery",
			"environment": env,
			"socket_type": socketType,
			"socket_path": socketPath,
			"reachable":   ep.Reachable,
		}).Debug("discovered daemon endpoint")
	}

	return ep, nil
}

// probe opens a client-side connection and immediately closes it.
func probe(ep *Endpoint) bool {
	if ep.SocketType == platform.SocketPipe && runtime.GOOS != "windows" {
		// Named pipes only exist as a concept on Windows; on other
		// platforms this endpoint can never be reachable.
		return false
	}

	conn, err := dial(ep)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitForDaemon retries Discover at a fixed interval until the endpoint
// is reachable or timeout elapses, returning ErrDaemonUnreachable on
// expiry.
func WaitForDaemon(ctx context.Context, env string, timeout time.Duration, logger *logrus.Logger) (*Endpoint, error) {
	const pollInterval = 200 * time.Millisecond

	deadline := time.Now().Add(timeout)
	var last *Endpoint

	for {
		ep, err := Discover(env, logger)
		if err != nil {
			return nil, err
		}
		last = ep
		if ep.Reachable {
			return ep, nil
		}

		if time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, runtimeerrors.Wrap(ctx.Err(), "waiting for daemon")
		case <-time.After(pollInterval):
		}
	}

	return nil, runtimeerrors.Wrapf(runtimeerrors.ErrDaemonUnreachable,
		"daemon not reachable at %s after %s", last.SocketPath, timeout)
}

// dial opens a raw client connection to ep without performing any
// protocol handshake. Used only for reachability probing; the IPC
// transport package performs the real connect+auth sequence.
func dial(ep *Endpoint) (net.Conn, error) {
	d := net.Dialer{Timeout: 2 * time.Second}
	switch ep.SocketType {
	case platform.SocketUnix:
		return d.Dial("unix", ep.SocketPath)
	case platform.SocketPipe:
		return dialPipe(ep.SocketPath, d.Timeout)
	default:
		return nil, fmt.Errorf("unsupported socket type: %s", ep.SocketType)
	}
}

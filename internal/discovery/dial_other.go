//go:build !windows

package discovery

import (
	"fmt"
	"net"
	"time"
)

// dialPipe is unreachable on non-Windows platforms: SocketTypeFor never
// returns SocketPipe for a non-Windows Detect() result.
func dialPipe(path string, timeout time.Duration) (net.Conn, error) {
	return nil, fmt.Errorf("named pipes are not supported on this platform")
}

//go:build windows

package discovery

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialPipe opens a Windows named pipe client connection for reachability
// probing.
func dialPipe(path string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(path, &timeout)
}

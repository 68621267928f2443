//go:build !windows

package transport

import (
	"fmt"
	"net"
	"time"
)

func dialNamedPipe(path string, timeout time.Duration) (net.Conn, error) {
	return nil, fmt.Errorf("named pipes are not supported on this platform")
}

package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/laofahai/linch-mind-sub000/internal/platform"
)

// DialDefault is the production Dialer: a Unix domain socket via the
// stdlib net package, or (on Windows) a named pipe via go-winio.
func DialDefault(socketType platform.SocketType, socketPath string, timeout time.Duration) (net.Conn, error) {
	switch socketType {
	case platform.SocketUnix:
		d := net.Dialer{Timeout: timeout}
		return d.Dial("unix", socketPath)
	case platform.SocketPipe:
		return dialNamedPipe(socketPath, timeout)
	default:
		return nil, fmt.Errorf("unsupported socket type: %s", socketType)
	}
}

package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
	"github.com/laofahai/linch-mind-sub000/internal/platform"
)

// DefaultTimeout is used when callers don't supply their own.
const DefaultTimeout = 30 * time.Second

// Dialer opens the underlying transport for a socket type/path pair.
// Exists so discovery and ipc packages can share a single dial
// implementation without import cycles.
type Dialer func(socketType platform.SocketType, socketPath string, timeout time.Duration) (net.Conn, error)

// Client is a single IPC connection: at most one request may be in
// flight at a time (spec.md §4.2 "one request in flight per
// connection"). A Client must not be shared across goroutines without
// external serialization.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	mu      sync.Mutex
	logger  *logrus.Logger
}

// Connect opens socketPath over socketType, performs the auth
// handshake, and returns a ready-to-use Client. Any handshake failure
// — transport error, malformed JSON, or an explicit authenticated=false
// — fails the connection with ErrAuthFailed (spec.md §4.2).
func Connect(dial Dialer, socketType platform.SocketType, socketPath string, clientType string, timeout time.Duration, logger *logrus.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := dial(socketType, socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", socketPath, runtimeerrors.ErrDaemonUnreachable)
	}

	c := &Client{conn: conn, timeout: timeout, logger: logger}

	if err := c.authenticate(clientType); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"component":   "transport",
			"socket_path": socketPath,
		}).Info("connected and authenticated to daemon")
	}

	return c, nil
}

// authHandshake is the body POSTed to /auth/handshake.
type authHandshake struct {
	ClientPID  int    `json:"client_pid"`
	ClientType string `json:"client_type"`
}

func (c *Client) authenticate(clientType string) error {
	body, err := json.Marshal(authHandshake{ClientPID: os.Getpid(), ClientType: clientType})
	if err != nil {
		return fmt.Errorf("encoding handshake body: %w", runtimeerrors.ErrAuthFailed)
	}

	raw, reply, err := c.sendRaw(NewRequest("POST", "/auth/handshake", body))
	if err != nil {
		return fmt.Errorf("handshake request failed: %w", runtimeerrors.ErrAuthFailed)
	}

	if !handshakeAuthenticated(raw, reply) {
		return fmt.Errorf("daemon rejected handshake: %w", runtimeerrors.ErrAuthFailed)
	}
	return nil
}

// handshakeAuthenticated reports whether a handshake reply indicates
// authenticated=true, checking both the top-level object (some daemon
// builds reply without the full envelope for this one call) and the
// envelope's `data` field.
func handshakeAuthenticated(raw []byte, reply *Reply) bool {
	var top struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.Unmarshal(raw, &top); err == nil && top.Authenticated {
		return true
	}

	if reply != nil && len(reply.Data) > 0 {
		var inner struct {
			Authenticated bool `json:"authenticated"`
		}
		if err := json.Unmarshal(reply.Data, &inner); err == nil && inner.Authenticated {
			return true
		}
	}

	return false
}

// Send serializes req, writes it as a length-prefixed frame, reads the
// length-prefixed reply, and parses it. It never retries internally;
// retry policy belongs to the caller (spec.md §4.2).
func (c *Client) Send(req *Request) (*Reply, error) {
	_, reply, err := c.sendRaw(req)
	return reply, err
}

func (c *Client) sendRaw(req *Request) ([]byte, *Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, nil, fmt.Errorf("setting deadline: %w", runtimeerrors.ErrTransport)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding request: %w", runtimeerrors.ErrTransport)
	}

	if err := WriteFrame(c.conn, payload); err != nil {
		return nil, nil, classifyIOError(err)
	}

	raw, err := ReadFrame(c.conn)
	if err != nil {
		return nil, nil, classifyIOError(err)
	}

	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return raw, nil, fmt.Errorf("decoding reply: %w", runtimeerrors.ErrDecode)
	}

	return raw, &reply, nil
}

// classifyIOError turns a raw I/O error into Timeout or TransportError
// per spec.md §7.
func classifyIOError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if asNetError(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", runtimeerrors.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", runtimeerrors.ErrTransport, err)
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

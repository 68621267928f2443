// Package ipc layers typed Get/Post helpers on top of internal/transport,
// translating reply envelopes into (data, error) pairs the upper layers
// (config, status, connector) consume directly.
package ipc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/laofahai/linch-mind-sub000/internal/chunk"
	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
	"github.com/laofahai/linch-mind-sub000/internal/transport"
)

// MaxFrameBody is PostLarge's chunking threshold: bodies below it are
// sent as one frame, bodies at or above it are split into chunks. Post
// itself never chunks. A single oversized frame risks the daemon's IPC
// buffer limits (spec.md §9 leaves the exact threshold undocumented;
// 1 MiB is comfortably under common Unix-socket buffer sizes).
const MaxFrameBody = 1 << 20

// Client is the request/response surface every upper layer programs
// against; it hides the transport.Client's envelope plumbing.
type Client struct {
	conn *transport.Client
}

// New wraps an already-connected transport.Client.
func New(conn *transport.Client) *Client {
	return &Client{conn: conn}
}

// Get issues a GET request and returns the reply's raw data payload.
func (c *Client) Get(path string) (json.RawMessage, error) {
	return c.do("GET", path, nil)
}

// Post issues a POST request with body (marshaled to JSON) and returns
// the reply's raw data payload.
func (c *Client) Post(path string, body interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", runtimeerrors.ErrTransport)
		}
		raw = encoded
	}
	return c.do("POST", path, raw)
}

// PostLarge posts body to path, transparently splitting it into
// chunk.Info frames against chunkPath when its encoded size reaches
// MaxFrameBody. The daemon is expected to reassemble chunks posted to
// chunkPath by session id before routing them to path.
func (c *Client) PostLarge(path, chunkPath string, body interface{}) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", runtimeerrors.ErrTransport)
	}
	if len(encoded) < MaxFrameBody {
		return c.do("POST", path, encoded)
	}

	chunks, err := chunk.Chunkify(body, chunk.DefaultChunkSize)
	if err != nil {
		return nil, fmt.Errorf("chunking oversized payload: %w", err)
	}

	var last json.RawMessage
	for _, ch := range chunks {
		raw, err := c.Post(chunkPath, ch)
		if err != nil {
			return nil, fmt.Errorf("posting chunk %d/%d: %w", ch.ChunkIndex+1, ch.TotalChunks, err)
		}
		last = raw
	}
	return last, nil
}

func (c *Client) do(method, path string, data json.RawMessage) (json.RawMessage, error) {
	reply, err := c.conn.Send(transport.NewRequest(method, path, data))
	if err != nil {
		return nil, err
	}
	if !reply.Ok() {
		return nil, replyError(reply)
	}
	return reply.Data, nil
}

// replyError turns a failed reply's error object into a Go error. Every
// reply failure is surfaced as a CoreError (spec.md §7/SPEC_FULL §4.10:
// every surfaced error carries an id and a can_retry/retry_after hint),
// wrapped alongside ErrTransport so callers can still errors.Is against
// the sentinel.
func replyError(reply *transport.Reply) error {
	if reply.Error != nil && reply.Error.Message != "" {
		ce := runtimeerrors.NewCoreError(runtimeerrors.KindTransportError, reply.Error.Message)
		if reply.Error.RetryAfter > 0 {
			ce.WithRetryAfter(time.Duration(reply.Error.RetryAfter * float64(time.Second)))
		}
		return fmt.Errorf("daemon error (status=%d, code=%s): %w: %w",
			reply.StatusCode, reply.Error.Code, runtimeerrors.ErrTransport, ce)
	}
	ce := runtimeerrors.NewCoreError(runtimeerrors.KindTransportError, fmt.Sprintf("daemon returned status %d", reply.StatusCode))
	return fmt.Errorf("daemon returned status %d: %w: %w", reply.StatusCode, runtimeerrors.ErrTransport, ce)
}

// Close closes the underlying transport connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Decode is a convenience for unmarshaling a Get/Post result into v.
func Decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding response: %w", runtimeerrors.ErrDecode)
	}
	return nil
}

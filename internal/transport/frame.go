// Package transport implements the length-prefixed JSON framing, the
// connect+authenticate handshake, and the synchronous request/reply
// exchange that every higher layer builds on (spec.md §4.2).
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
)

// MaxFrameBytes bounds a single frame's payload size to guard against a
// corrupt or hostile length prefix causing an unbounded allocation.
const MaxFrameBytes = 64 * 1024 * 1024

// WriteFrame writes a 4-byte big-endian length prefix followed by
// payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return runtimeerrors.Wrap(err, "writing frame length")
	}
	if _, err := w.Write(payload); err != nil {
		return runtimeerrors.Wrap(err, "writing frame payload")
	}
	return nil
}

// ReadFrame reads a 4-byte big-endian length prefix followed by that
// many bytes from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, runtimeerrors.Wrap(err, "reading frame length")
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameBytes {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d: %w", length, MaxFrameBytes, runtimeerrors.ErrTransport)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, runtimeerrors.Wrap(err, "reading frame payload")
	}
	return payload, nil
}

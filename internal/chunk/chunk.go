// Package chunk splits large JSON payloads into ordered, checksummed
// pieces that fit under an IPC frame budget, and reassembles them on
// the receiving side.
package chunk

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"

	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
)

// DefaultChunkSize and MinChunkSize bound the adaptive chunk size.
const (
	DefaultChunkSize = 32 * 1024
	MinChunkSize     = 4 * 1024
	shrinkFactor     = 2
)

// ErrorKind names the adaptation triggers recognized by AdaptChunkSize.
type ErrorKind string

const (
	ErrorKindMemory  ErrorKind = "MEMORY"
	ErrorKindSize    ErrorKind = "SIZE"
	ErrorKindTimeout ErrorKind = "TIMEOUT"
)

// Info is a single chunk of a chunked transfer (spec.md §3 ChunkInfo).
type Info struct {
	SessionID    string `json:"session_id"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`
	Data         []byte `json:"data"`
	OriginalSize int    `json:"original_size"`
	Checksum     string `json:"checksum"`
}

// Checksum computes the stable, non-cryptographic integrity hash used
// across a chunk session. It is integrity-only: a byte-flip detector,
// not tamper-resistant against an adversary.
func Checksum(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Chunkify serializes payload to canonical JSON and splits it into
// ceil(len/chunkSize) chunks sharing one session id, total count,
// original size, and checksum.
func Chunkify(payload interface{}, chunkSize int) ([]Info, error) {
	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", runtimeerrors.ErrTransport)
	}

	checksum := Checksum(encoded)
	sessionID := uuid.NewString()
	totalChunks := ceilDiv(len(encoded), chunkSize)
	if totalChunks == 0 {
		totalChunks = 1
	}

	chunks := make([]Info, 0, totalChunks)
	for i := 0; i < totalChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		data := make([]byte, end-start)
		copy(data, encoded[start:end])

		chunks = append(chunks, Info{
			SessionID:    sessionID,
			ChunkIndex:   i,
			TotalChunks:  totalChunks,
			Data:         data,
			OriginalSize: len(encoded),
			Checksum:     checksum,
		})
	}

	return chunks, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// AdaptChunkSize shrinks currentSize by a fixed factor in response to a
// MEMORY, SIZE, or TIMEOUT error, bounded below by MinChunkSize. Any
// other error kind leaves currentSize unchanged.
func AdaptChunkSize(currentSize int, kind ErrorKind) int {
	switch kind {
	case ErrorKindMemory, ErrorKindSize, ErrorKindTimeout:
		shrunk := currentSize / shrinkFactor
		if shrunk < MinChunkSize {
			return MinChunkSize
		}
		return shrunk
	default:
		return currentSize
	}
}

// Reassemble validates and concatenates a chunk session's pieces back
// into the original payload bytes, verifying the checksum.
func Reassemble(chunks []Info) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks supplied: %w", runtimeerrors.ErrChecksumMismatch)
	}

	total := chunks[0].TotalChunks
	sessionID := chunks[0].SessionID
	checksum := chunks[0].Checksum
	originalSize := chunks[0].OriginalSize

	if len(chunks) != total {
		return nil, fmt.Errorf("expected %d chunks, got %d: %w", total, len(chunks), runtimeerrors.ErrChecksumMismatch)
	}

	seen := make([]bool, total)
	ordered := make([][]byte, total)
	for _, c := range chunks {
		if c.SessionID != sessionID || c.TotalChunks != total || c.Checksum != checksum || c.OriginalSize != originalSize {
			return nil, fmt.Errorf("chunk session field mismatch: %w", runtimeerrors.ErrChecksumMismatch)
		}
		if c.ChunkIndex < 0 || c.ChunkIndex >= total {
			return nil, fmt.Errorf("chunk index %d out of range [0,%d): %w", c.ChunkIndex, total, runtimeerrors.ErrChecksumMismatch)
		}
		if seen[c.ChunkIndex] {
			return nil, fmt.Errorf("duplicate chunk index %d: %w", c.ChunkIndex, runtimeerrors.ErrChecksumMismatch)
		}
		seen[c.ChunkIndex] = true
		ordered[c.ChunkIndex] = c.Data
	}

	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("missing chunk index %d: %w", i, runtimeerrors.ErrChecksumMismatch)
		}
	}

	full := make([]byte, 0, originalSize)
	for _, piece := range ordered {
		full = append(full, piece...)
	}

	if Checksum(full) != checksum {
		return nil, fmt.Errorf("reassembled payload checksum mismatch: %w", runtimeerrors.ErrChecksumMismatch)
	}

	return full, nil
}

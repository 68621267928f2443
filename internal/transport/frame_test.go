package transport

import (
	"bytes"
	"encoding/json"
	"testing"
)

// TestFrameRoundTrip is the frame round-trip law from spec.md §8.1:
// parse(frame(E)) == E and len(frame(E)) == 4 + len(json(E)).
func TestFrameRoundTrip(t *testing.T) {
	req := NewRequest("GET", "/ping", nil)
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	if got, want := buf.Len(), 4+len(payload); got != want {
		t.Errorf("frame length = %d, want %d", got, want)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	var roundTripped Request
	if err := json.Unmarshal(got, &roundTripped); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if roundTripped.Method != req.Method || roundTripped.Path != req.Path {
		t.Errorf("round-tripped request = %+v, want %+v", roundTripped, req)
	}
}

// TestFrameS1Scenario mirrors spec.md §8 S1: a GET /ping envelope with
// empty data/headers/query_params, prefixed by its big-endian length.
func TestFrameS1Scenario(t *testing.T) {
	req := NewRequest("GET", "/ping", nil)
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	want := `{"method":"GET","path":"/ping","data":{},"headers":{},"query_params":{}}`
	if string(payload) != want {
		t.Fatalf("serialized envelope = %s, want %s", payload, want)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	prefix := buf.Bytes()[:4]
	length := uint32(prefix[0])<<24 | uint32(prefix[1])<<16 | uint32(prefix[2])<<8 | uint32(prefix[3])
	if int(length) != len(payload) {
		t.Errorf("length prefix = %d, want %d", length, len(payload))
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("ReadFrame() error = nil, want error for oversized length")
	}
}

func TestReadFrameShortReadIsError(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x05})
	buf.WriteString("ab")
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("ReadFrame() error = nil, want error for short payload")
	}
}

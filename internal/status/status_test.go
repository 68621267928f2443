package status

import (
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/laofahai/linch-mind-sub000/internal/ipc"
	"github.com/laofahai/linch-mind-sub000/internal/platform"
	"github.com/laofahai/linch-mind-sub000/internal/transport"
)

func fakeClient(t *testing.T, extra []transport.Reply) *ipc.Client {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	handshake := transport.Reply{StatusCode: 200, Data: json.RawMessage(`{"authenticated":true}`)}
	success := true
	ack := transport.Reply{StatusCode: 200, Success: &success, Data: json.RawMessage(`{}`)}
	all := []transport.Reply{handshake}
	if len(extra) == 0 {
		for i := 0; i < 32; i++ {
			all = append(all, ack)
		}
	} else {
		all = append(all, extra...)
	}

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for _, reply := range all {
			if _, err := transport.ReadFrame(conn); err != nil {
				return
			}
			payload, _ := json.Marshal(reply)
			if err := transport.WriteFrame(conn, payload); err != nil {
				return
			}
		}
		<-done
	}()

	dial := func(socketType platform.SocketType, path string, timeout time.Duration) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		return d.Dial("unix", path)
	}

	conn, err := transport.Connect(dial, platform.SocketUnix, socketPath, "test", time.Second, nil)
	if err != nil {
		t.Fatalf("transport.Connect: %v", err)
	}
	return ipc.New(conn)
}

func TestNewManagerStartsStopped(t *testing.T) {
	client := fakeClient(t, nil)
	m := NewManager("filesystem", "Filesystem Monitor", client, nil)
	if got := m.Snapshot().RunningState; got != StateStopped {
		t.Errorf("initial state = %s, want stopped", got)
	}
}

func TestNotifyStartingTransitionsAndPosts(t *testing.T) {
	client := fakeClient(t, nil)
	m := NewManager("filesystem", "Filesystem Monitor", client, nil)

	if err := m.NotifyStarting(); err != nil {
		t.Fatalf("NotifyStarting: %v", err)
	}
	if got := m.Snapshot().RunningState; got != StateStarting {
		t.Errorf("state = %s, want starting", got)
	}
}

func TestHeartbeatPromotesStartingToRunning(t *testing.T) {
	client := fakeClient(t, nil)
	m := NewManager("filesystem", "Filesystem Monitor", client, nil)

	if err := m.NotifyStarting(); err != nil {
		t.Fatalf("NotifyStarting: %v", err)
	}
	if err := m.sendHeartbeat(); err != nil {
		t.Fatalf("sendHeartbeat: %v", err)
	}
	if got := m.Snapshot().RunningState; got != StateRunning {
		t.Errorf("state after heartbeat = %s, want running", got)
	}
}

func TestSetErrorAndClearError(t *testing.T) {
	client := fakeClient(t, nil)
	m := NewManager("filesystem", "Filesystem Monitor", client, nil)

	ce := m.SetError("DaemonUnreachable", "could not reach daemon")
	if ce.ID == "" {
		t.Fatalf("SetError did not return a CoreError with a populated id")
	}
	snap := m.Snapshot()
	if snap.RunningState != StateError || snap.ErrorCode != "DaemonUnreachable" {
		t.Errorf("snapshot after SetError = %+v", snap)
	}
	if snap.ErrorID != ce.ID {
		t.Errorf("snapshot.ErrorID = %q, want %q", snap.ErrorID, ce.ID)
	}

	m.ClearError()
	snap = m.Snapshot()
	if snap.RunningState != StateStopped {
		t.Errorf("state after ClearError = %s, want stopped", snap.RunningState)
	}
	if snap.ErrorID != "" {
		t.Errorf("ErrorID after ClearError = %q, want empty", snap.ErrorID)
	}
}

func TestStopHeartbeatIdempotentWithoutStart(t *testing.T) {
	client := fakeClient(t, nil)
	m := NewManager("filesystem", "Filesystem Monitor", client, nil)
	m.StopHeartbeat()
	m.StopHeartbeat()
}

func TestStartStopHeartbeatLoop(t *testing.T) {
	client := fakeClient(t, nil)
	m := NewManager("filesystem", "Filesystem Monitor", client, nil)

	m.StartHeartbeat(10 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	m.StopHeartbeat()

	if got := m.Snapshot().LastHeartbeat; got.IsZero() {
		t.Error("LastHeartbeat is zero, want at least one heartbeat to have landed")
	}
}

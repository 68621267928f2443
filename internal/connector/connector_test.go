package connector

import (
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/laofahai/linch-mind-sub000/internal/config"
	"github.com/laofahai/linch-mind-sub000/internal/discovery"
	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
	"github.com/laofahai/linch-mind-sub000/internal/monitor"
	"github.com/laofahai/linch-mind-sub000/internal/platform"
	"github.com/laofahai/linch-mind-sub000/internal/status"
	"github.com/laofahai/linch-mind-sub000/internal/transport"
)

var errSentinel = errors.New("on_initialize failed")

// fakeMonitor is an in-memory monitor.Monitor for lifecycle tests.
type fakeMonitor struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	callback func(monitor.FileSystemEvent)
}

func (f *fakeMonitor) Start(cb func(monitor.FileSystemEvent)) error {
	f.mu.Lock()
	f.started = true
	f.callback = cb
	f.mu.Unlock()
	return nil
}
func (f *fakeMonitor) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}
func (f *fakeMonitor) AddPath(monitor.Config) error { return nil }
func (f *fakeMonitor) RemovePath(string) error      { return nil }
func (f *fakeMonitor) SetBatchCallback(func([]monitor.FileSystemEvent), time.Duration) {}
func (f *fakeMonitor) Statistics() monitor.Statistics                                  { return monitor.Statistics{} }
func (f *fakeMonitor) emit(e monitor.FileSystemEvent) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(e)
	}
}

type fakeHooks struct {
	mon             *fakeMonitor
	onInitializeErr error
	onStartErr      error
	onStopCalled    bool
}

func (h *fakeHooks) CreateMonitor(*config.Cache) (monitor.Monitor, error) { return h.mon, nil }
func (h *fakeHooks) LoadConnectorConfig(*config.Cache) error             { return nil }
func (h *fakeHooks) OnInitialize() error                                 { return h.onInitializeErr }
func (h *fakeHooks) OnStart() error                                      { return h.onStartErr }
func (h *fakeHooks) OnStop() error {
	h.onStopCalled = true
	return nil
}

// startFakeDaemon serves a scripted handshake + acks for every
// subsequent request so Connector's lifecycle calls all succeed.
func startFakeDaemon(t *testing.T) *discovery.Endpoint {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	success := true
	handshake := transport.Reply{StatusCode: 200, Data: json.RawMessage(`{"authenticated":true}`)}
	ack := transport.Reply{StatusCode: 200, Success: &success, Data: json.RawMessage(`{}`)}
	config := transport.Reply{StatusCode: 200, Success: &success, Data: json.RawMessage(`{"config":{"check_interval":5}}`)}

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		first := true
		for {
			raw, err := transport.ReadFrame(conn)
			if err != nil {
				return
			}
			var req transport.Request
			_ = json.Unmarshal(raw, &req)

			var reply transport.Reply
			switch {
			case first:
				reply = handshake
				first = false
			case req.Path == "/connector-config/current/fs-test":
				reply = config
			default:
				reply = ack
			}

			payload, _ := json.Marshal(reply)
			if err := transport.WriteFrame(conn, payload); err != nil {
				return
			}
		}
	}()

	return &discovery.Endpoint{
		SocketType: platform.SocketUnix,
		SocketPath: socketPath,
		Reachable:  true,
	}
}

func TestConnectorLifecycle(t *testing.T) {
	ep := startFakeDaemon(t)
	mon := &fakeMonitor{}
	hooks := &fakeHooks{mon: mon}

	c := New(Options{
		ConnectorID:   "fs-test",
		DisplayName:   "Test Connector",
		ClientType:    "connector",
		DaemonTimeout: time.Second,
		BatchInterval: 20 * time.Millisecond,
		Discover: func(env string, logger *logrus.Logger) (*discovery.Endpoint, error) {
			return ep, nil
		},
	}, hooks)

	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mon.emit(monitor.FileSystemEvent{Path: "/a.md", Kind: monitor.KindCreated, Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if !mon.started {
		t.Error("monitor.Start was not called")
	}
	if !mon.stopped {
		t.Error("monitor.Stop was not called")
	}
	if !hooks.onStopCalled {
		t.Error("OnStop hook was not called")
	}
}

func TestConnectorInitializeFailsOnInitializeHookError(t *testing.T) {
	ep := startFakeDaemon(t)
	mon := &fakeMonitor{}
	hooks := &fakeHooks{mon: mon, onInitializeErr: errSentinel}

	c := New(Options{
		ConnectorID: "fs-test",
		ClientType:  "connector",
		Discover: func(env string, logger *logrus.Logger) (*discovery.Endpoint, error) {
			return ep, nil
		},
	}, hooks)

	err := c.Initialize()
	if err == nil {
		t.Fatal("Initialize() error = nil, want error from on_initialize hook")
	}

	var ce *runtimeerrors.CoreError
	if !errors.As(err, &ce) {
		t.Fatalf("Initialize() error = %v, want wrapping a *CoreError", err)
	}
	if ce.ID == "" {
		t.Errorf("CoreError.ID is empty, want a generated id")
	}

	snap := c.Status()
	if snap.RunningState != status.StateError {
		t.Errorf("status after failed Initialize = %s, want error", snap.RunningState)
	}
	if snap.ErrorID != ce.ID {
		t.Errorf("status.ErrorID = %q, want %q", snap.ErrorID, ce.ID)
	}
}

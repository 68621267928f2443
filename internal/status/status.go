// Package status tracks a connector's running state and drives the
// heartbeat/notification traffic to the daemon (spec.md §4.5).
package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
	"github.com/laofahai/linch-mind-sub000/internal/ipc"
)

// RunningState is the connector lifecycle state.
type RunningState string

const (
	StateStopped  RunningState = "stopped"
	StateStarting RunningState = "starting"
	StateRunning  RunningState = "running"
	StateStopping RunningState = "stopping"
	StateError    RunningState = "error"
)

// DefaultHeartbeatInterval is the fixed period between heartbeats.
const DefaultHeartbeatInterval = 30 * time.Second

// Status is a connector's status record (spec.md §3 ConnectorStatus).
// All transitions are driven only by Manager methods below.
type Status struct {
	ConnectorID   string
	DisplayName   string
	Enabled       bool
	RunningState  RunningState
	ProcessID     int
	LastHeartbeat time.Time
	DataCount     int64
	LastActivity  time.Time
	ErrorMessage  string
	ErrorCode     string
	// ErrorID/CanRetry/RetryAfter mirror the CoreError SetError built for
	// the current error state (spec.md §7 / SPEC_FULL §4.10: every
	// surfaced error carries an id, a can_retry flag and a retry hint).
	ErrorID    string
	CanRetry   bool
	RetryAfter time.Duration
}

// Manager owns the status record, heartbeat loop, and daemon
// notifications for one connector process.
type Manager struct {
	mu     sync.Mutex
	status Status
	client *ipc.Client
	logger *logrus.Logger

	heartbeatOnce sync.Once
	heartbeatDone chan struct{}
	heartbeatWG   sync.WaitGroup
}

// NewManager creates a Manager in the stopped state.
func NewManager(connectorID, displayName string, client *ipc.Client, logger *logrus.Logger) *Manager {
	return &Manager{
		status: Status{
			ConnectorID:  connectorID,
			DisplayName:  displayName,
			Enabled:      true,
			RunningState: StateStopped,
			ProcessID:    processID(),
		},
		client: client,
		logger: logger,
	}
}

// Snapshot returns a copy of the current status.
func (m *Manager) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setState(s RunningState) {
	m.mu.Lock()
	m.status.RunningState = s
	m.mu.Unlock()
}

// NotifyStarting transitions to starting and posts a one-shot status
// update. starting auto-promotes to running on the first successful
// heartbeat (see StartHeartbeat).
func (m *Manager) NotifyStarting() error {
	m.setState(StateStarting)
	return m.postStatus()
}

// NotifyStopping transitions to stopping and posts a one-shot status update.
func (m *Manager) NotifyStopping() error {
	m.setState(StateStopping)
	return m.postStatus()
}

// NotifyRunning transitions starting to running explicitly, rather
// than waiting for the first heartbeat to promote it (spec.md §4.8
// start() step 3: "Transition to running; notify daemon").
func (m *Manager) NotifyRunning() error {
	m.setState(StateRunning)
	return m.postStatus()
}

// SetError transitions to the error state, building a CoreError from
// kind and message so every surfaced error carries an id and retry hint
// (spec.md §7, SPEC_FULL §4.10) rather than the bare code/message
// strings this used to take. Returns the CoreError so a caller that is
// also about to return a Go error can wrap the same instance.
func (m *Manager) SetError(kind runtimeerrors.Kind, message string) *runtimeerrors.CoreError {
	ce := runtimeerrors.NewCoreError(kind, message)

	m.mu.Lock()
	m.status.RunningState = StateError
	m.status.ErrorCode = string(kind)
	m.status.ErrorMessage = message
	m.status.ErrorID = ce.ID
	m.status.CanRetry = ce.CanRetry
	m.status.RetryAfter = ce.RetryAfter
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.WithFields(logrus.Fields{
			"component": "status",
			"error_id":  ce.ID,
			"can_retry": ce.CanRetry,
		}).Error(message)
	}
	return ce
}

// ClearError transitions from error back to stopped.
func (m *Manager) ClearError() {
	m.mu.Lock()
	if m.status.RunningState == StateError {
		m.status.RunningState = StateStopped
		m.status.ErrorCode = ""
		m.status.ErrorMessage = ""
		m.status.ErrorID = ""
		m.status.CanRetry = false
		m.status.RetryAfter = 0
	}
	m.mu.Unlock()
}

// MarkStopped transitions to stopped, used when the process exits
// cleanly from stopping.
func (m *Manager) MarkStopped() {
	m.setState(StateStopped)
}

// IncrementDataCount bumps the processed-item counter and updates
// last-activity; used by the connector's batch sender.
func (m *Manager) IncrementDataCount(n int64) {
	m.mu.Lock()
	m.status.DataCount += n
	m.status.LastActivity = time.Now()
	m.mu.Unlock()
}

type heartbeatPayload struct {
	ConnectorID  string  `json:"connector_id"`
	ProcessID    int     `json:"process_id"`
	RunningState string  `json:"running_state"`
	DataCount    int64   `json:"data_count"`
	Timestamp    int64   `json:"timestamp"`
	ErrorMessage string  `json:"error_message,omitempty"`
	ErrorCode    string  `json:"error_code,omitempty"`
	ErrorID      string  `json:"error_id,omitempty"`
	CanRetry     bool    `json:"can_retry,omitempty"`
	RetryAfter   float64 `json:"retry_after,omitempty"`
}

func payloadFrom(snap Status) heartbeatPayload {
	return heartbeatPayload{
		ConnectorID:  snap.ConnectorID,
		ProcessID:    snap.ProcessID,
		RunningState: string(snap.RunningState),
		DataCount:    snap.DataCount,
		Timestamp:    time.Now().Unix(),
		ErrorMessage: snap.ErrorMessage,
		ErrorCode:    snap.ErrorCode,
		ErrorID:      snap.ErrorID,
		CanRetry:     snap.CanRetry,
		RetryAfter:   snap.RetryAfter.Seconds(),
	}
}

func (m *Manager) postStatus() error {
	snap := m.Snapshot()
	body := payloadFrom(snap)
	_, err := m.client.Post(fmt.Sprintf("/connectors/%s/status", snap.ConnectorID), body)
	return err
}

func (m *Manager) sendHeartbeat() error {
	snap := m.Snapshot()
	body := payloadFrom(snap)
	_, err := m.client.Post("/heartbeat", body)
	if err == nil {
		m.mu.Lock()
		m.status.LastHeartbeat = time.Now()
		if m.status.RunningState == StateStarting {
			m.status.RunningState = StateRunning
		}
		m.mu.Unlock()
	}
	return err
}

// StartHeartbeat begins the periodic heartbeat loop. Safe to call only
// once per Manager.
func (m *Manager) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	m.heartbeatOnce.Do(func() {
		m.heartbeatDone = make(chan struct{})
		m.heartbeatWG.Add(1)
		go m.heartbeatLoop(interval)
	})
}

func (m *Manager) heartbeatLoop(interval time.Duration) {
	defer m.heartbeatWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.sendHeartbeat(); err != nil && m.logger != nil {
				m.logger.WithError(err).WithField("component", "status").Warn("heartbeat failed")
			}
		case <-m.heartbeatDone:
			return
		}
	}
}

// StopHeartbeat joins the heartbeat loop. Idempotent.
func (m *Manager) StopHeartbeat() {
	if m.heartbeatDone == nil {
		return
	}
	select {
	case <-m.heartbeatDone:
	default:
		close(m.heartbeatDone)
	}
	m.heartbeatWG.Wait()
}

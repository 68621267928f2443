// Package connector composes discovery, transport, config, status, and
// monitor into the reusable base every concrete connector runs on top
// of (spec.md §4.8).
package connector

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/laofahai/linch-mind-sub000/internal/config"
	"github.com/laofahai/linch-mind-sub000/internal/discovery"
	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
	"github.com/laofahai/linch-mind-sub000/internal/ipc"
	"github.com/laofahai/linch-mind-sub000/internal/monitor"
	"github.com/laofahai/linch-mind-sub000/internal/status"
	"github.com/laofahai/linch-mind-sub000/internal/transport"
)

// Hooks are the connector-specific glue a concrete connector supplies.
type Hooks interface {
	// CreateMonitor builds the monitor this connector drives. A nil
	// monitor (and nil error) is treated as MonitorBuildFailed.
	CreateMonitor(cfg *config.Cache) (monitor.Monitor, error)
	// LoadConnectorConfig lets the connector pull typed options out of
	// the freshly loaded config cache before the monitor is built.
	LoadConnectorConfig(cfg *config.Cache) error
	OnInitialize() error
	OnStart() error
	OnStop() error
}

// Options tunes the base connector's timing and identity.
type Options struct {
	ConnectorID   string
	DisplayName   string
	ClientType    string
	Environment   string
	DaemonTimeout time.Duration
	BatchInterval time.Duration
	MaxBatchSize  int
	QueueCapacity int
	Logger        *logrus.Logger

	// Discover and Dialer default to discovery.Discover and
	// transport.DialDefault; tests override them to point at a fake
	// in-process daemon instead of the real per-environment socket.
	Discover func(env string, logger *logrus.Logger) (*discovery.Endpoint, error)
	Dialer   transport.Dialer
}

const (
	DefaultBatchInterval = 300 * time.Millisecond
	DefaultMaxBatchSize  = 50
	DefaultQueueCapacity = 1000
)

func (o Options) withDefaults() Options {
	if o.DaemonTimeout <= 0 {
		o.DaemonTimeout = transport.DefaultTimeout
	}
	if o.BatchInterval <= 0 {
		o.BatchInterval = DefaultBatchInterval
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = DefaultMaxBatchSize
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.Discover == nil {
		o.Discover = discovery.Discover
	}
	if o.Dialer == nil {
		o.Dialer = transport.DialDefault
	}
	return o
}

// Connector is the base lifecycle skeleton. It is not safe to reuse
// across multiple Initialize/Start/Stop cycles.
type Connector struct {
	opts  Options
	hooks Hooks

	client *ipc.Client
	cfg    *config.Cache
	status *status.Manager
	mon    monitor.Monitor

	initialized bool
	queue       chan monitor.FileSystemEvent

	// stopRequested mirrors the spec's process-global stop flag,
	// scoped to this instance rather than a package global so multiple
	// connectors can run in one test binary without cross-talk.
	stopRequested atomic.Bool
	batchDone     chan struct{}
	batchWG       sync.WaitGroup
}

// New builds a Connector in the not-yet-initialized state.
func New(opts Options, hooks Hooks) *Connector {
	return &Connector{opts: opts.withDefaults(), hooks: hooks}
}

// Initialize runs spec.md §4.8 step 1: discover, connect, authenticate,
// load config, build the monitor, and run the on_initialize hook.
func (c *Connector) Initialize() error {
	endpoint, err := c.opts.Discover(c.opts.Environment, c.opts.Logger)
	if err != nil {
		ce := runtimeerrors.NewCoreError(runtimeerrors.KindDaemonUnreachable, "could not discover daemon endpoint")
		c.logCoreError(ce, err)
		return fmt.Errorf("discovering daemon: %w: %w", runtimeerrors.ErrDaemonUnreachable, ce)
	}

	conn, err := transport.Connect(c.opts.Dialer, endpoint.SocketType, endpoint.SocketPath, c.opts.ClientType, c.opts.DaemonTimeout, c.opts.Logger)
	if err != nil {
		ce := runtimeerrors.NewCoreError(runtimeerrors.ClassifyKind(err), "could not connect to daemon")
		c.logCoreError(ce, err)
		return fmt.Errorf("connecting to daemon: %w: %w", err, ce)
	}
	c.client = ipc.New(conn)
	c.status = status.NewManager(c.opts.ConnectorID, c.opts.DisplayName, c.client, c.opts.Logger)

	cfg, err := config.LoadFromDaemon(c.client, c.opts.ConnectorID, c.opts.Logger)
	if err != nil {
		c.logWarn("loading config failed, continuing with empty config", err)
		cfg = &config.Cache{}
	}
	c.cfg = cfg

	if err := cfg.SnapshotToFile(c.opts.Environment); err != nil {
		c.logWarn("writing debug config snapshot failed, continuing", err)
	}

	if err := c.hooks.LoadConnectorConfig(cfg); err != nil {
		c.logWarn("connector-specific config load failed, continuing", err)
	}

	mon, err := c.hooks.CreateMonitor(cfg)
	if err != nil || mon == nil {
		if err == nil {
			err = runtimeerrors.ErrMonitorBuildFail
		}
		ce := c.status.SetError(runtimeerrors.KindMonitorBuildFail, "monitor construction failed")
		return fmt.Errorf("creating monitor: %w: %w", err, ce)
	}
	c.mon = mon

	if err := c.hooks.OnInitialize(); err != nil {
		ce := c.status.SetError(runtimeerrors.KindCallbackPanic, err.Error())
		return fmt.Errorf("on_initialize hook failed: %w: %w", err, ce)
	}

	c.initialized = true
	return c.status.NotifyStarting()
}

// logCoreError logs a surfaced CoreError before a status.Manager exists
// to record it on (discovery/connect fail before the daemon connection
// that status.SetError would otherwise post through).
func (c *Connector) logCoreError(ce *runtimeerrors.CoreError, cause error) {
	if c.opts.Logger == nil {
		return
	}
	entry := c.opts.Logger.WithFields(logrus.Fields{
		"component": "connector",
		"error_id":  ce.ID,
		"can_retry": ce.CanRetry,
	})
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Error(ce.Message)
}

// Start runs spec.md §4.8 step 2: wire the monitor's callback into a
// bounded queue, spawn the batch and heartbeat threads, run on_start,
// and transition to running.
func (c *Connector) Start() error {
	if !c.initialized {
		return fmt.Errorf("connector not initialized")
	}

	c.queue = make(chan monitor.FileSystemEvent, c.opts.QueueCapacity)
	if err := c.mon.Start(func(e monitor.FileSystemEvent) {
		select {
		case c.queue <- e:
		default:
			c.logWarn("event queue full, dropping event", runtimeerrors.ErrQueueOverflow)
		}
	}); err != nil {
		ce := c.status.SetError(runtimeerrors.ClassifyKind(err), "starting monitor failed")
		return fmt.Errorf("starting monitor: %w: %w", err, ce)
	}

	c.batchDone = make(chan struct{})
	c.batchWG.Add(1)
	go c.batchLoop()

	c.status.StartHeartbeat(status.DefaultHeartbeatInterval)

	if err := c.hooks.OnStart(); err != nil {
		ce := c.status.SetError(runtimeerrors.KindCallbackPanic, err.Error())
		return fmt.Errorf("on_start hook failed: %w: %w", err, ce)
	}

	return c.status.NotifyRunning()
}

// Stop runs spec.md §4.8 step 3 in order: notify stopping, stop the
// monitor (flushing its debouncer), run on_stop, stop the batch and
// heartbeat threads (draining and sending residual events), then mark
// stopped.
func (c *Connector) Stop() error {
	c.stopRequested.Store(true)

	if c.status != nil {
		_ = c.status.NotifyStopping()
	}

	if c.mon != nil {
		if err := c.mon.Stop(); err != nil {
			c.logWarn("monitor stop reported an error", err)
		}
	}

	if err := c.hooks.OnStop(); err != nil {
		c.logWarn("on_stop hook failed", err)
	}

	if c.batchDone != nil {
		close(c.batchDone)
		c.batchWG.Wait()
	}

	if c.status != nil {
		c.status.StopHeartbeat()
		c.status.MarkStopped()
	}

	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Run is the synchronous entrypoint for cmd/connector: initialize,
// start, block for SIGINT/SIGTERM, then stop. Returns a non-nil error
// for a fatal initialization/start failure (exit code 1 per spec.md
// §6), or when closing the daemon connection during Stop fails.
func (c *Connector) Run() error {
	if err := c.Initialize(); err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	signal.Stop(sigCh)

	return c.Stop()
}

// Status returns a snapshot of the connector's current status.
func (c *Connector) Status() status.Status {
	if c.status == nil {
		return status.Status{ConnectorID: c.opts.ConnectorID, RunningState: status.StateStopped}
	}
	return c.status.Snapshot()
}

func (c *Connector) logWarn(msg string, err error) {
	if c.opts.Logger != nil {
		c.opts.Logger.WithError(err).WithField("component", "connector").Warn(msg)
	}
}

// Package debounce coalesces bursty per-path events into at most one
// delivery per debounce window (spec.md §4.6).
package debounce

import (
	"fmt"
	"sync"
	"time"

	runtimeerrors "github.com/laofahai/linch-mind-sub000/internal/errors"
)

// DefaultDelay and DefaultMaxPending are the spec's suggested defaults.
const (
	DefaultDelay      = 200 * time.Millisecond
	DefaultMaxPending = 1000
	loopTick          = 50 * time.Millisecond
)

// Event is the minimal shape the debouncer needs from whatever
// higher-level event type a monitor submits.
type Event interface {
	// Key is the coalescing key — the canonical absolute path.
	Key() string
	// IsDelete reports whether this event represents a deletion; used
	// by the never-downgrade-deleted coalescing rule.
	IsDelete() bool
}

// Config tunes debounce behavior.
type Config struct {
	Delay            time.Duration
	MaxPendingEvents int
	// EnableCoalescing controls whether repeated submissions for the
	// same path replace the pending entry (spec.md §4.6). nil (the zero
	// value) defaults to enabled, matching every caller that doesn't set
	// it explicitly; a non-nil false disables coalescing so each
	// submission gets its own pending slot and is delivered
	// independently once its window elapses, instead of the later event
	// silently replacing the earlier one.
	EnableCoalescing *bool
}

func (c Config) withDefaults() Config {
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	if c.MaxPendingEvents <= 0 {
		c.MaxPendingEvents = DefaultMaxPending
	}
	return c
}

func (c Config) coalescingEnabled() bool {
	return c.EnableCoalescing == nil || *c.EnableCoalescing
}

// Delivery is what the handler receives: the most recent surviving
// event for a path, and whether it absorbed multiple submissions.
type Delivery struct {
	Event     Event
	Coalesced bool
}

type pendingEntry struct {
	event       Event
	scheduledAt time.Time
	coalesced   bool
}

// Statistics are the debouncer's exported counters.
type Statistics struct {
	EventsCoalesced uint64
	EventsDropped   uint64
}

// Debouncer is a per-path timer-reset coalescer with a bounded pending
// set. Handler is invoked once per surviving event, never while the
// internal lock is held.
type Debouncer struct {
	cfg     Config
	handler func(Delivery)

	mu      sync.Mutex
	pending map[string]*pendingEntry
	stats   Statistics
	// seq disambiguates pending map keys when coalescing is disabled, so
	// multiple in-flight events for the same path each get their own slot
	// instead of replacing one another.
	seq uint64

	signal chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New builds a Debouncer. handler is called from the processing loop
// goroutine, one delivery at a time.
func New(cfg Config, handler func(Delivery)) *Debouncer {
	return &Debouncer{
		cfg:     cfg.withDefaults(),
		handler: handler,
		pending: make(map[string]*pendingEntry),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the processing loop. Safe to call only once.
func (d *Debouncer) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.loop()
	})
}

// Submit records event for debounced delivery. Returns QueueOverflow
// if the pending set is full and event is dropped. When
// Config.EnableCoalescing is disabled, submissions for the same path
// never replace one another — each gets delivered independently.
func (d *Debouncer) Submit(event Event) error {
	d.mu.Lock()

	coalesce := d.cfg.coalescingEnabled()
	key := event.Key()

	if coalesce {
		if existing, ok := d.pending[key]; ok {
			if existing.event.IsDelete() && !event.IsDelete() {
				// never downgrade a pending delete
			} else {
				existing.event = event
			}
			existing.scheduledAt = time.Now().Add(d.cfg.Delay)
			existing.coalesced = true
			d.stats.EventsCoalesced++
			d.mu.Unlock()
			d.wake()
			return nil
		}
	}

	if len(d.pending) >= d.cfg.MaxPendingEvents {
		d.stats.EventsDropped++
		d.mu.Unlock()
		return runtimeerrors.ErrQueueOverflow
	}

	if !coalesce {
		d.seq++
		key = fmt.Sprintf("%s\x00%d", key, d.seq)
	}

	d.pending[key] = &pendingEntry{
		event:       event,
		scheduledAt: time.Now().Add(d.cfg.Delay),
	}
	d.mu.Unlock()
	d.wake()
	return nil
}

func (d *Debouncer) wake() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// Statistics returns a snapshot of the debouncer's counters.
func (d *Debouncer) Statistics() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Debouncer) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(loopTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.drainReady()
		case <-d.signal:
			d.drainReady()
		case <-d.done:
			d.flushAll()
			return
		}
	}
}

func (d *Debouncer) drainReady() {
	now := time.Now()

	d.mu.Lock()
	var ready []Delivery
	for key, entry := range d.pending {
		if !entry.scheduledAt.After(now) {
			ready = append(ready, Delivery{Event: entry.event, Coalesced: entry.coalesced})
			delete(d.pending, key)
		}
	}
	d.mu.Unlock()

	for _, delivery := range ready {
		d.handler(delivery)
	}
}

func (d *Debouncer) flushAll() {
	d.mu.Lock()
	var all []Delivery
	for key, entry := range d.pending {
		all = append(all, Delivery{Event: entry.event, Coalesced: entry.coalesced})
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, delivery := range all {
		d.handler(delivery)
	}
}

// Stop flushes the entire pending set to the handler and joins the
// processing loop. Idempotent.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

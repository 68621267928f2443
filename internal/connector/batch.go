package connector

import (
	"time"

	"github.com/laofahai/linch-mind-sub000/internal/monitor"
)

// batchLoop drains the event queue every BatchInterval up to
// MaxBatchSize, submitting a single event via /events/submit or
// multiple via /events/submit_batch. On stop it drains any events
// still queued and sends them before returning.
func (c *Connector) batchLoop() {
	defer c.batchWG.Done()

	ticker := time.NewTicker(c.opts.BatchInterval)
	defer ticker.Stop()

	var pending []monitor.FileSystemEvent

	for {
		select {
		case e := <-c.queue:
			pending = append(pending, e)
			if len(pending) >= c.opts.MaxBatchSize {
				c.submitBatch(pending)
				pending = nil
			}
		case <-ticker.C:
			if len(pending) > 0 {
				c.submitBatch(pending)
				pending = nil
			}
		case <-c.batchDone:
			pending = append(pending, c.drainQueue()...)
			if len(pending) > 0 {
				c.submitBatch(pending)
			}
			return
		}
	}
}

func (c *Connector) drainQueue() []monitor.FileSystemEvent {
	var drained []monitor.FileSystemEvent
	for {
		select {
		case e := <-c.queue:
			drained = append(drained, e)
		default:
			return drained
		}
	}
}

// submitBatch translates events to the wire type and POSTs them,
// falling back to per-event submission on batch failure (spec.md §4.8).
func (c *Connector) submitBatch(events []monitor.FileSystemEvent) {
	wire := make([]monitor.ConnectorEvent, 0, len(events))
	for _, e := range events {
		ce, err := monitor.FromFileSystemEvent(c.opts.ConnectorID, e)
		if err != nil {
			c.logWarn("dropping event that failed to encode", err)
			continue
		}
		wire = append(wire, ce)
	}
	if len(wire) == 0 {
		return
	}

	var err error
	if len(wire) == 1 {
		_, err = c.client.Post("/events/submit", wire[0])
	} else {
		_, err = c.client.PostLarge("/events/submit_batch", "/events/submit_chunk", map[string]interface{}{"batch_events": wire})
	}

	if err == nil {
		c.status.IncrementDataCount(int64(len(wire)))
		return
	}

	c.logWarn("batch submission failed, falling back to per-event submission", err)
	successes := int64(0)
	for _, ce := range wire {
		if _, perEventErr := c.client.Post("/events/submit", ce); perEventErr == nil {
			successes++
		}
	}
	c.status.IncrementDataCount(successes)
}

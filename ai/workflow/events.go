package workflow

import (
	"log/slog"
	"sync"
	"time"
)

// TransitionEvent is published for every phase change.
type TransitionEvent struct {
	WorkflowID string    `json:"workflow_id"`
	SessionID  string    `json:"session_id"`
	From       Phase     `json:"from"`
	To         Phase     `json:"to"`
	At         time.Time `json:"at"`
}

// Publisher receives transition events. Implementations must be fast or
// hand off to their own queue; the engine never waits on a publisher.
type Publisher func(TransitionEvent)

// Bus delivers transition events strictly sequentially to a sink on a
// dedicated goroutine. Publication never blocks or fails the caller: when the
// buffer is full the event is dropped and logged.
type Bus struct {
	sink    Publisher
	eventCh chan TransitionEvent
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewBus creates an event bus draining into sink. A nil sink yields a bus
// that discards everything, which keeps call sites unconditional.
func NewBus(sink Publisher) *Bus {
	b := &Bus{sink: sink}
	if sink == nil {
		return b
	}

	b.eventCh = make(chan TransitionEvent, 256)
	b.wg.Add(1)
	go b.dispatchLoop()
	return b
}

func (b *Bus) dispatchLoop() {
	defer b.wg.Done()
	for e := range b.eventCh {
		// Recover from panic in sink to protect the dispatch loop.
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event bus: recovered from sink panic", "panic", r, "workflow_id", e.WorkflowID)
				}
			}()
			b.sink(e)
		}()
	}
}

// Publish enqueues an event. Safe for concurrent use.
func (b *Bus) Publish(e TransitionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sink == nil || b.closed {
		return
	}

	select {
	case b.eventCh <- e:
	default:
		slog.Warn("event bus: buffer full, dropping event",
			"workflow_id", e.WorkflowID,
			"from", e.From,
			"to", e.To,
		)
	}
}

// Close stops the bus and waits for queued events to be delivered.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.sink == nil || b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.eventCh)
	b.wg.Wait()
}

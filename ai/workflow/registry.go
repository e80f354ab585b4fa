package workflow

import (
	"log/slog"
	"sync"
)

// Suspension is a parked workflow waiting for a user reply. The resume signal
// is one-shot: exactly one Fulfill delivers exactly one message to exactly one
// continuation.
type Suspension struct {
	wc     *Context
	signal chan string
}

// Context returns the parked workflow context. Only the goroutine that
// fulfilled the suspension may touch it.
func (s *Suspension) Context() *Context {
	return s.wc
}

// Await returns the delivered user message. It must only be called by the
// fulfilling goroutine, for which the value is already buffered; a closed
// signal (the suspension was superseded) yields ok=false.
func (s *Suspension) Await() (string, bool) {
	text, ok := <-s.signal
	return text, ok
}

// Registry maps session identifiers to suspended workflows.
//
// Invariant: a session has an entry if and only if its context is in an
// AWAITING_INPUT_* phase, and never more than one entry. All operations are
// safe for concurrent use from the suspending goroutine and the unrelated
// goroutine that later delivers the clarifying reply.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Suspension

	// onEvict runs after a suspension is dropped without being fulfilled
	// (superseded by a newer park, or cleared). Set before first use.
	onEvict func()
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Suspension)}
}

// Park registers a fresh suspension for the session. If the session is
// already suspended the prior entry is cleared first and its signal closed,
// so a stale continuation can observe it was superseded.
func (r *Registry) Park(wc *Context) *Suspension {
	r.mu.Lock()

	superseded := false
	if prev, ok := r.sessions[wc.SessionID]; ok {
		slog.Warn("registry: superseding existing suspension",
			"session_id", wc.SessionID,
			"workflow_id", prev.wc.ID,
		)
		close(prev.signal)
		delete(r.sessions, wc.SessionID)
		superseded = true
	}

	s := &Suspension{wc: wc, signal: make(chan string, 1)}
	r.sessions[wc.SessionID] = s
	r.mu.Unlock()

	if superseded {
		r.notifyEvict()
	}
	return s
}

// Fulfill delivers a user message to the session's suspension, removing the
// entry in the same critical section so no second resumption can race it.
// Returns the suspension, or ok=false when the session has none registered
// (the late message is simply dropped by the caller).
func (r *Registry) Fulfill(sessionID, text string) (*Suspension, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sessionID)

	// Buffered send cannot block: the channel has capacity 1 and this is the
	// only writer (entry removal above guarantees single fulfillment).
	s.signal <- text
	close(s.signal)
	return s, true
}

// Clear drops the session's suspension, if any, without delivering a message.
// Used when the clarification budget is exhausted.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		close(s.signal)
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if ok {
		r.notifyEvict()
	}
}

// notifyEvict reports a suspension dropped without fulfillment.
func (r *Registry) notifyEvict() {
	if r.onEvict != nil {
		r.onEvict()
	}
}

// Len reports the number of parked workflows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

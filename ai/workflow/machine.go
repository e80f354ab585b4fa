package workflow

import (
	"log/slog"
	"time"
)

// StateMachine records phase changes and publishes them for observability.
//
// It is a pure recorder of history, not a validator: callers are responsible
// for only requesting valid transitions. Publication must never block or fail
// a transition; the bus swallows and logs its own problems.
type StateMachine struct {
	bus *Bus
}

// NewStateMachine creates a state machine publishing to bus. Bus may be nil.
func NewStateMachine(bus *Bus) *StateMachine {
	if bus == nil {
		bus = NewBus(nil)
	}
	return &StateMachine{bus: bus}
}

// Transition unconditionally moves wc to the new phase, keeping the old value
// in PreviousPhase, and publishes a transition event.
//
// Re-asserting the current phase (the executor does this every iteration)
// publishes an event but leaves Phase and PreviousPhase untouched, so applying
// the same transition twice is idempotent on the context.
func (m *StateMachine) Transition(wc *Context, to Phase) {
	if wc.Phase != to {
		wc.PreviousPhase = wc.Phase
		wc.Phase = to
	}

	m.bus.Publish(TransitionEvent{
		WorkflowID: wc.ID,
		SessionID:  wc.SessionID,
		From:       wc.PreviousPhase,
		To:         to,
		At:         time.Now(),
	})

	slog.Debug("workflow: phase transition",
		"workflow_id", wc.ID,
		"session_id", wc.SessionID,
		"from", wc.PreviousPhase,
		"to", to,
	)
}

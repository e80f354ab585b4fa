package workflow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectEvents returns a sink that appends into the returned slice pointer.
func collectEvents() (Publisher, func() []TransitionEvent) {
	var mu sync.Mutex
	var events []TransitionEvent
	sink := func(e TransitionEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}
	return sink, func() []TransitionEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]TransitionEvent(nil), events...)
	}
}

func TestTransitionUpdatesPhaseAndPublishes(t *testing.T) {
	sink, got := collectEvents()
	bus := NewBus(sink)
	m := NewStateMachine(bus)
	wc := NewContext("sess-1", 1, "input", nil)

	m.Transition(wc, PhaseInitialized)
	m.Transition(wc, PhaseDecomposing)
	bus.Close()

	assert.Equal(t, PhaseDecomposing, wc.Phase)
	assert.Equal(t, PhaseInitialized, wc.PreviousPhase)

	events := got()
	require.Len(t, events, 2)
	assert.Equal(t, PhaseClassifying, events[0].From)
	assert.Equal(t, PhaseInitialized, events[0].To)
	assert.Equal(t, PhaseInitialized, events[1].From)
	assert.Equal(t, PhaseDecomposing, events[1].To)
	assert.Equal(t, wc.ID, events[0].WorkflowID)
	assert.Equal(t, "sess-1", events[0].SessionID)
}

func TestTransitionIsIdempotent(t *testing.T) {
	sink, got := collectEvents()
	bus := NewBus(sink)
	m := NewStateMachine(bus)
	wc := NewContext("sess-1", 1, "input", nil)

	m.Transition(wc, PhaseExecuting)
	m.Transition(wc, PhaseExecuting)
	m.Transition(wc, PhaseExecuting)
	bus.Close()

	// Re-asserting leaves the context untouched but still publishes.
	assert.Equal(t, PhaseExecuting, wc.Phase)
	assert.Equal(t, PhaseClassifying, wc.PreviousPhase)
	assert.Len(t, got(), 3)
}

func TestTransitionSurvivesPanickingSink(t *testing.T) {
	sink := func(TransitionEvent) { panic("sink exploded") }
	bus := NewBus(sink)
	m := NewStateMachine(bus)
	wc := NewContext("sess-1", 1, "input", nil)

	m.Transition(wc, PhaseInitialized)
	m.Transition(wc, PhaseDecomposing)
	bus.Close()

	assert.Equal(t, PhaseDecomposing, wc.Phase)
}

func TestNilBusStillTransitions(t *testing.T) {
	m := NewStateMachine(nil)
	wc := NewContext("sess-1", 1, "input", nil)

	m.Transition(wc, PhaseFailed)
	assert.Equal(t, PhaseFailed, wc.Phase)
	assert.True(t, wc.Phase.Terminal())
}

func TestPublishAfterCloseIsSafe(t *testing.T) {
	sink, _ := collectEvents()
	bus := NewBus(sink)
	bus.Close()

	bus.Publish(TransitionEvent{WorkflowID: "w"})
	bus.Close()
}

func TestPhasePredicates(t *testing.T) {
	tests := []struct {
		phase    Phase
		terminal bool
		awaiting bool
		resume   Phase
	}{
		{PhaseClassifying, false, false, PhaseClassifying},
		{PhaseCompleted, true, false, PhaseCompleted},
		{PhaseFailed, true, false, PhaseFailed},
		{PhaseAwaitingInputForDecomposition, false, true, PhaseInitialized},
		{PhaseAwaitingInputForExecution, false, true, PhaseExecuting},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.phase.Terminal())
			assert.Equal(t, tt.awaiting, tt.phase.AwaitingInput())
			assert.Equal(t, tt.resume, tt.phase.ResumeTarget())
		})
	}
}

// Package workflow implements the agent task-workflow engine: a single user
// request is screened for information completeness (suspending mid-flight to
// ask the user for more when needed), decomposed into ordered sub-tasks,
// executed one at a time against a language model with cumulative context,
// and synthesized into one final answer streamed back to the caller.
//
// Control flow:
//
//	Inbound message
//	    ↓
//	┌──────────────────┐  missing info   ┌──────────────────┐
//	│ Completeness gate│ ──────────────→ │ Session registry │ ←── later reply
//	└────────┬─────────┘    (suspend)    └──────────────────┘     resumes
//	         ↓ complete
//	┌──────────────────┐
//	│    Decomposer    │  one model call → ordered sub-task list
//	└────────┬─────────┘
//	         ↓
//	┌──────────────────┐
//	│     Executor     │  one model call per sub-task, cumulative context
//	└────────┬─────────┘
//	         ↓
//	┌──────────────────┐
//	│    Summarizer    │  one model call → final streamed answer
//	└──────────────────┘
//
// Every phase transition is published to the event bus for observability.
package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lumenchat/lumen/ai/core/llm"
)

// Observer receives engine lifecycle notifications beyond phase transitions.
// Implementations must not block.
type Observer interface {
	WorkflowStarted()
	WorkflowParked()
	WorkflowResumed()
	// WorkflowEvicted reports a parked workflow dropped without resuming,
	// either superseded by a newer suspension or cleared.
	WorkflowEvicted()
	WorkflowFinished(terminal Phase, usage TokenUsage, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) WorkflowStarted()                               {}
func (noopObserver) WorkflowParked()                                {}
func (noopObserver) WorkflowResumed()                               {}
func (noopObserver) WorkflowEvicted()                               {}
func (noopObserver) WorkflowFinished(Phase, TokenUsage, time.Duration) {}

// EngineConfig contains configuration for the workflow engine.
type EngineConfig struct {
	// MaxConcurrent caps workflows executing at once across all sessions.
	MaxConcurrent int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{MaxConcurrent: 8}
}

// Option configures the engine.
type Option func(*Engine)

// WithBus injects the transition-event sink.
func WithBus(sink Publisher) Option {
	return func(e *Engine) {
		e.bus = NewBus(sink)
	}
}

// WithObserver injects a lifecycle observer (metrics export).
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithMaxConcurrent caps concurrently executing workflows.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.config.MaxConcurrent = n
		}
	}
}

// WithPrompts overrides the prompt templates.
func WithPrompts(cfg *PromptConfig) Option {
	return func(e *Engine) {
		if cfg != nil {
			e.prompts = cfg
		}
	}
}

// Engine is the task-workflow engine. It owns the session registry and is the
// single entry point for inbound chat messages.
type Engine struct {
	config     *EngineConfig
	prompts    *PromptConfig
	bus        *Bus
	machine    *StateMachine
	registry   *Registry
	gate       *Gate
	decomposer *Decomposer
	executor   *Executor
	summarizer *Summarizer
	store      ConversationStore
	observer   Observer
	sem        *semaphore.Weighted
}

// NewEngine creates a workflow engine over the given gateway and store.
func NewEngine(llmService llm.Service, store ConversationStore, opts ...Option) *Engine {
	e := &Engine{
		config:   DefaultEngineConfig(),
		prompts:  GetPromptConfig(),
		bus:      NewBus(nil),
		registry: NewRegistry(),
		store:    store,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}

	// A superseded or cleared suspension never resumes, so the observer must
	// learn about it here rather than through the resume path.
	e.registry.onEvict = func() { e.observer.WorkflowEvicted() }

	e.machine = NewStateMachine(e.bus)
	e.gate = NewGate(llmService, e.prompts, e.registry, e.machine, store)
	e.decomposer = NewDecomposer(llmService, e.prompts)
	e.executor = NewExecutor(llmService, e.prompts, e.gate, e.machine)
	e.summarizer = NewSummarizer(llmService, e.prompts)
	e.sem = semaphore.NewWeighted(int64(e.config.MaxConcurrent))
	return e
}

// Registry exposes the session registry (read-mostly; used by tests and the
// server's health surface).
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Close flushes and stops the event bus.
func (e *Engine) Close() {
	e.bus.Close()
}

// Handle is the single entry point for an inbound chat message. It either
// resumes a parked workflow for the session or starts a fresh one, and in
// both cases drives the workflow until it completes, fails, or parks again.
//
// history is the session conversation before text; it is ignored when the
// message resumes a parked workflow, which already carries its own. The
// returned error reports a failed workflow; a parked workflow returns nil.
func (e *Engine) Handle(ctx context.Context, sessionID string, userID int32, text string, history []llm.Message, stream Stream) error {
	if susp, ok := e.registry.Fulfill(sessionID, text); ok {
		return e.resume(ctx, susp, stream)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	wc := NewContext(sessionID, userID, text, history)
	e.observer.WorkflowStarted()

	if err := e.store.AppendMessages(ctx, sessionID, userID, []StoredMessage{
		{Role: "user", Content: text},
	}); err != nil {
		slog.Warn("engine: persisting request failed", "workflow_id", wc.ID, "error", err)
	}

	slog.Info("engine: workflow started",
		"workflow_id", wc.ID,
		"session_id", sessionID,
		"input_length", len(text),
	)

	e.machine.Transition(wc, PhaseInitialized)
	return e.run(ctx, wc, stream)
}

// resume continues a fulfilled suspension on the current goroutine, which
// now owns the context.
func (e *Engine) resume(ctx context.Context, susp *Suspension, stream Stream) error {
	text, ok := susp.Await()
	if !ok {
		// Superseded before delivery; nothing to run.
		return nil
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	wc := susp.Context()
	wc.CurrentInput = text
	wc.ClarifyReplies = append(wc.ClarifyReplies, text)
	wc.History = append(wc.History, llm.UserMessage(text))
	wc.BumpClarifyAttempt()
	e.observer.WorkflowResumed()

	if err := e.store.AppendMessages(ctx, wc.SessionID, wc.UserID, []StoredMessage{
		{Role: "user", Content: text},
	}); err != nil {
		slog.Warn("engine: persisting clarification reply failed", "workflow_id", wc.ID, "error", err)
	}

	slog.Info("engine: workflow resumed",
		"workflow_id", wc.ID,
		"session_id", wc.SessionID,
		"attempt", wc.ClarifyAttempt(),
	)

	e.machine.Transition(wc, wc.Phase.ResumeTarget())
	return e.run(ctx, wc, stream)
}

// run drives the workflow from its current phase to a terminal phase or a
// suspension. Resumability falls out of phase-driven dispatch: a resumed
// context re-enters here and picks up exactly where it parked.
func (e *Engine) run(ctx context.Context, wc *Context, stream Stream) error {
	start := time.Now()

	for {
		switch wc.Phase {
		case PhaseInitialized:
			outcome, err := e.gate.Check(ctx, wc, "", PhaseAwaitingInputForDecomposition, stream)
			switch outcome {
			case GateSuspended:
				e.observer.WorkflowParked()
				return nil
			case GateFailed:
				return e.fail(ctx, wc, stream, err, start)
			}
			e.machine.Transition(wc, PhaseDecomposing)

		case PhaseDecomposing:
			if err := e.decomposer.Decompose(ctx, wc); err != nil {
				return e.fail(ctx, wc, stream, err, start)
			}
			e.machine.Transition(wc, PhaseDecomposed)
			e.sendPlan(wc, stream)

		case PhaseDecomposed, PhaseExecuting:
			if wc.Done() {
				e.machine.Transition(wc, PhaseExecuted)
				continue
			}
			outcome, err := e.executor.Step(ctx, wc, stream)
			switch outcome {
			case StepSuspended:
				e.observer.WorkflowParked()
				return nil
			case StepFailed:
				return e.fail(ctx, wc, stream, err, start)
			}

		case PhaseExecuted:
			e.machine.Transition(wc, PhaseSummarizing)

		case PhaseSummarizing:
			answer, err := e.summarizer.Summarize(ctx, wc, stream)
			if err != nil {
				return e.fail(ctx, wc, stream, err, start)
			}
			if err := stream.SendFinal(KindFinalAnswer, answer); err != nil {
				slog.Warn("engine: final delivery failed", "workflow_id", wc.ID, "error", err)
			}
			if err := e.store.AppendMessages(ctx, wc.SessionID, wc.UserID, []StoredMessage{
				{Role: "assistant", Content: answer},
			}); err != nil {
				slog.Warn("engine: persisting final answer failed", "workflow_id", wc.ID, "error", err)
			}
			e.machine.Transition(wc, PhaseCompleted)
			e.finish(wc, start)
			return nil

		default:
			// Terminal or unexpected phase; nothing left to drive.
			return nil
		}
	}
}

// sendPlan streams the fixed task list to the client.
func (e *Engine) sendPlan(wc *Context, stream Stream) {
	payload, err := json.Marshal(map[string]any{
		"workflow_id": wc.ID,
		"tasks":       wc.TaskList,
	})
	if err != nil {
		slog.Error("engine: failed to marshal plan", "workflow_id", wc.ID, "error", err)
		return
	}
	if err := stream.SendPartial(KindPlan, string(payload)); err != nil {
		slog.Warn("engine: plan delivery failed", "workflow_id", wc.ID, "error", err)
	}
}

// fail moves the workflow to its failure terminal state and notifies the
// client once. Partial results already streamed are not retracted.
func (e *Engine) fail(ctx context.Context, wc *Context, stream Stream, cause error, start time.Time) error {
	e.machine.Transition(wc, PhaseFailed)
	e.registry.Clear(wc.SessionID)

	slog.Error("engine: workflow failed",
		"workflow_id", wc.ID,
		"session_id", wc.SessionID,
		"completed_tasks", wc.Cursor,
		"error", cause,
	)
	if err := stream.Fail(cause); err != nil {
		slog.Warn("engine: failure delivery failed", "workflow_id", wc.ID, "error", err)
	}
	e.finish(wc, start)
	return cause
}

func (e *Engine) finish(wc *Context, start time.Time) {
	e.observer.WorkflowFinished(wc.Phase, wc.Usage, time.Since(start))
	slog.Info("engine: workflow finished",
		"workflow_id", wc.ID,
		"session_id", wc.SessionID,
		"phase", wc.Phase,
		"tasks", len(wc.TaskList),
		"total_tokens", wc.Usage.TotalTokens,
	)
}

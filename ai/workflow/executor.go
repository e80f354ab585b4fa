package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumenchat/lumen/ai/core/llm"
)

// Executor drains the task list strictly sequentially, one model call per
// sub-task, feeding each call the cumulative results of all earlier ones:
// sub-tasks are deliberately not executed in isolation, their answers may
// depend on earlier findings.
type Executor struct {
	llm     llm.Service
	prompts *PromptConfig
	gate    *Gate
	machine *StateMachine
}

// NewExecutor creates a task executor.
func NewExecutor(llmService llm.Service, prompts *PromptConfig, gate *Gate, machine *StateMachine) *Executor {
	if prompts == nil {
		prompts = GetPromptConfig()
	}
	return &Executor{llm: llmService, prompts: prompts, gate: gate, machine: machine}
}

// StepOutcome is the result of executing one sub-task.
type StepOutcome int

const (
	// StepDone means the task completed and the cursor advanced.
	StepDone StepOutcome = iota
	// StepSuspended means the pre-task gate parked the workflow.
	StepSuspended
	// StepFailed means the model call failed; remaining tasks are aborted.
	StepFailed
)

// Step executes the task at the cursor. The EXECUTING phase is re-asserted
// each iteration for observability.
func (e *Executor) Step(ctx context.Context, wc *Context, stream Stream) (StepOutcome, error) {
	task := wc.TaskList[wc.Cursor]

	// An ambiguous task description goes through the same completeness check
	// and suspend/resume protocol as the initial request. The screen is a
	// cheap local heuristic so well-formed tasks skip the extra model call.
	if taskNeedsClarification(task) {
		outcome, err := e.gate.Check(ctx, wc, task, PhaseAwaitingInputForExecution, stream)
		switch outcome {
		case GateSuspended:
			return StepSuspended, nil
		case GateFailed:
			return StepFailed, err
		}
		// GateProceed: the clarified input refines the task in place.
		if wc.CurrentInput != wc.OriginalInput && wc.CurrentInput != "" {
			task = fmt.Sprintf("%s (clarified: %s)", task, wc.CurrentInput)
			wc.TaskList[wc.Cursor] = task
		}
	}

	e.machine.Transition(wc, PhaseExecuting)

	startTime := time.Now()
	slog.Info("executor: executing task",
		"workflow_id", wc.ID,
		"cursor", wc.Cursor,
		"task_count", len(wc.TaskList),
	)

	prompt := e.prompts.BuildExecutorPrompt(wc.ClarifiedRequest(), task, wc.TaskResults)
	result, stats, err := e.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)})
	if stats != nil {
		wc.AddUsage(stats.PromptTokens, stats.CompletionTokens, stats.TotalTokens, stats.CacheReadTokens)
	}
	if err != nil {
		slog.Error("executor: task failed",
			"workflow_id", wc.ID,
			"cursor", wc.Cursor,
			"error", err,
		)
		return StepFailed, fmt.Errorf("task %d: %w", wc.Cursor+1, err)
	}

	wc.AppendResult(task, result)

	// Intermediate results already streamed are never retracted, even if a
	// later task fails.
	if err := stream.SendPartial(KindTaskResult, result); err != nil {
		slog.Warn("executor: intermediate delivery failed", "workflow_id", wc.ID, "error", err)
	}

	slog.Info("executor: task completed",
		"workflow_id", wc.ID,
		"cursor", wc.Cursor,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return StepDone, nil
}

// taskNeedsClarification flags a task description as ambiguous. Flagged tasks
// go through the model-backed completeness check before execution.
func taskNeedsClarification(task string) bool {
	// Unresolved placeholders left by the decomposition model.
	if strings.Contains(task, "<?>") || strings.Contains(task, "[TBD]") || strings.Contains(task, "[?]") {
		return true
	}
	// A task phrased as a question back at the user is not executable as-is.
	return strings.HasSuffix(strings.TrimSpace(task), "?") && strings.Contains(strings.ToLower(task), "user")
}

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lumenchat/lumen/ai/core/llm"
)

// MaxClarifyAttempts bounds the clarification loop. Once a workflow has asked
// this many times it proceeds with whatever information exists rather than
// suspending again, so an uncooperative or silent user can never wedge a
// session.
const MaxClarifyAttempts = 3

// GateOutcome is the result of one completeness check.
type GateOutcome int

const (
	// GateProceed means the workflow continues to its success path.
	GateProceed GateOutcome = iota
	// GateSuspended means the workflow is parked awaiting a user reply.
	GateSuspended
	// GateFailed means the check itself failed; the workflow must fail.
	GateFailed
)

// gateDecision is the structured verdict the model returns.
type gateDecision struct {
	InfoComplete      bool   `json:"info_complete"`
	MissingInfoPrompt string `json:"missing_info_prompt"`
}

// Gate decides whether the accumulated user input is sufficient to proceed
// and suspends the workflow when it is not.
type Gate struct {
	llm      llm.Service
	prompts  *PromptConfig
	registry *Registry
	machine  *StateMachine
	store    ConversationStore
}

// NewGate creates an info-completeness gate.
func NewGate(llmService llm.Service, prompts *PromptConfig, registry *Registry, machine *StateMachine, store ConversationStore) *Gate {
	if prompts == nil {
		prompts = GetPromptConfig()
	}
	return &Gate{
		llm:      llmService,
		prompts:  prompts,
		registry: registry,
		machine:  machine,
		store:    store,
	}
}

// Check runs one clarification round for wc.
//
// awaitPhase names the suspension phase to enter when information is missing
// (it also selects the instruction: the pre-decomposition check reads the
// whole conversation, the pre-execution check screens a single task, passed
// in task). On GateSuspended the context has been parked in the registry and
// ownership has transferred to it; the caller must return without touching
// wc again.
func (g *Gate) Check(ctx context.Context, wc *Context, task string, awaitPhase Phase, stream Stream) (GateOutcome, error) {
	attempt := wc.ClarifyAttempt()

	// Escape hatch: never loop forever on a silent user.
	if attempt >= MaxClarifyAttempts {
		slog.Info("gate: clarification budget exhausted, proceeding with available information",
			"workflow_id", wc.ID,
			"session_id", wc.SessionID,
			"attempts", attempt,
		)
		if err := stream.SendPartial(KindNotice, g.prompts.Gate.ProceedNotice); err != nil {
			slog.Warn("gate: notice delivery failed", "workflow_id", wc.ID, "error", err)
		}
		g.registry.Clear(wc.SessionID)
		wc.ResetClarifyAttempt()
		return GateProceed, nil
	}

	// wc.History already carries every clarification round, including the
	// reply that resumed this one.
	messages := make([]llm.Message, 0, len(wc.History)+1)
	messages = append(messages, wc.History...)

	instruction := g.prompts.BuildGatePrompt()
	if awaitPhase == PhaseAwaitingInputForExecution {
		instruction = g.prompts.BuildTaskGatePrompt(task)
	}
	messages = append(messages, llm.UserMessage(instruction))

	response, stats, err := g.llm.Chat(ctx, messages)
	if stats != nil {
		wc.AddUsage(stats.PromptTokens, stats.CompletionTokens, stats.TotalTokens, stats.CacheReadTokens)
	}
	if err != nil {
		slog.Error("gate: model call failed", "workflow_id", wc.ID, "error", err)
		return GateFailed, fmt.Errorf("completeness check: %w", err)
	}

	decision, err := parseGateDecision(response)
	if err != nil {
		slog.Error("gate: unparseable verdict",
			"workflow_id", wc.ID,
			"response_length", len(response),
			"error", err,
		)
		return GateFailed, fmt.Errorf("completeness verdict: %w", err)
	}

	if decision.InfoComplete {
		slog.Info("gate: info complete",
			"workflow_id", wc.ID,
			"session_id", wc.SessionID,
			"attempt", attempt,
		)
		g.registry.Clear(wc.SessionID)
		wc.ResetClarifyAttempt()
		return GateProceed, nil
	}

	// Information is missing: ask the user, persist the round, park.
	if err := stream.SendPartial(KindClarification, decision.MissingInfoPrompt); err != nil {
		slog.Warn("gate: clarification delivery failed", "workflow_id", wc.ID, "error", err)
	}

	wc.History = append(wc.History, llm.AssistantMessage(decision.MissingInfoPrompt))
	persist := []StoredMessage{{Role: "assistant", Content: decision.MissingInfoPrompt}}
	if err := g.store.AppendMessages(ctx, wc.SessionID, wc.UserID, persist); err != nil {
		slog.Warn("gate: persisting clarification round failed", "workflow_id", wc.ID, "error", err)
	}

	g.machine.Transition(wc, awaitPhase)
	g.registry.Park(wc)

	slog.Info("gate: workflow suspended awaiting input",
		"workflow_id", wc.ID,
		"session_id", wc.SessionID,
		"attempt", attempt,
		"phase", awaitPhase,
	)
	return GateSuspended, nil
}

// parseGateDecision parses the model's JSON verdict, tolerating markdown
// code fences around it.
func parseGateDecision(response string) (*gateDecision, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var decision gateDecision
	if err := json.Unmarshal([]byte(response), &decision); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	if !decision.InfoComplete && decision.MissingInfoPrompt == "" {
		return nil, fmt.Errorf("incomplete verdict without a missing-info prompt")
	}
	return &decision, nil
}

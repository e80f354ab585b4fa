package workflow

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lumenchat/lumen/ai/core/llm"
)

// sideChannelCap bounds the phase-local scratch store. Writes beyond the cap
// are rejected so a misbehaving phase cannot grow the context without bound.
const sideChannelCap = 16

// TaskResult is one executed sub-task and its model output.
// Insertion order is significant: results are replayed verbatim into the
// summarizer prompt.
type TaskResult struct {
	Task   string
	Result string
}

// TokenUsage accumulates token consumption across all model calls of one workflow.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens,omitempty"`
}

// Context is the mutable, session-scoped aggregate for one workflow run.
//
// It is not safe for concurrent use: a context is exclusively owned by the
// goroutine that created it until it completes or is parked in the session
// registry, at which point ownership transfers to the registry entry and then
// to the goroutine that fulfills the resume signal.
type Context struct {
	// ID is generated at creation and immutable.
	ID string
	// SessionID and UserID are routing/ownership keys, immutable after creation.
	SessionID string
	UserID    int32

	// Phase and PreviousPhase are mutated only by Engine.transition.
	Phase         Phase
	PreviousPhase Phase

	// History is the session's conversation up to and including the request
	// that started the workflow. Clarification rounds append to it so a
	// resumed workflow sees a consistent conversation.
	History []llm.Message

	// OriginalInput is the user request that started the workflow.
	OriginalInput string
	// CurrentInput is the effective user message; clarification replies
	// replace it while OriginalInput stays fixed.
	CurrentInput string
	// ClarifyReplies collects the user's clarification-round answers in order.
	ClarifyReplies []string

	// TaskList is append-only and fixed once decomposition completes.
	TaskList []string
	// TaskResults holds (task, result) pairs in execution order.
	TaskResults []TaskResult
	// Cursor indexes the next task to execute; it never decreases.
	// Cursor == len(TaskList) is the completion predicate.
	Cursor int

	// Usage accumulates token statistics across model calls.
	Usage TokenUsage

	sideChannel map[string]any
}

// NewContext creates a workflow context in the classifying phase. history is
// the session conversation before input; input is appended as its final user
// turn.
func NewContext(sessionID string, userID int32, input string, history []llm.Message) *Context {
	return &Context{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		UserID:        userID,
		Phase:         PhaseClassifying,
		History:       append(append([]llm.Message{}, history...), llm.UserMessage(input)),
		OriginalInput: input,
		CurrentInput:  input,
		sideChannel:   make(map[string]any),
	}
}

// ClarifiedRequest is the request the downstream phases act on: the original
// input followed by every clarification answer, in order. Without replies it
// is the original input verbatim.
func (wc *Context) ClarifiedRequest() string {
	if len(wc.ClarifyReplies) == 0 {
		return wc.OriginalInput
	}
	parts := append([]string{wc.OriginalInput}, wc.ClarifyReplies...)
	return strings.Join(parts, "\n")
}

// AppendResult records a finished sub-task and advances the cursor.
func (wc *Context) AppendResult(task, result string) {
	wc.TaskResults = append(wc.TaskResults, TaskResult{Task: task, Result: result})
	wc.Cursor++
}

// Done reports whether every task in the list has executed.
func (wc *Context) Done() bool {
	return wc.Cursor >= len(wc.TaskList)
}

// SideGet reads a phase-local scratch value.
func (wc *Context) SideGet(key string) (any, bool) {
	v, ok := wc.sideChannel[key]
	return v, ok
}

// SideSet writes a phase-local scratch value. Writes that would grow the
// store beyond its cap are dropped with a warning.
func (wc *Context) SideSet(key string, value any) {
	if _, exists := wc.sideChannel[key]; !exists && len(wc.sideChannel) >= sideChannelCap {
		slog.Warn("workflow: side channel full, dropping write",
			"workflow_id", wc.ID,
			"key", key,
		)
		return
	}
	wc.sideChannel[key] = value
}

// SideDelete removes a phase-local scratch value.
func (wc *Context) SideDelete(key string) {
	delete(wc.sideChannel, key)
}

// Side-channel key for the clarification attempt counter.
const sideKeyClarifyAttempt = "clarify_attempt"

// ClarifyAttempt returns the current clarification round, starting at 0.
func (wc *Context) ClarifyAttempt() int {
	if v, ok := wc.sideChannel[sideKeyClarifyAttempt]; ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

// BumpClarifyAttempt increments the clarification round counter.
func (wc *Context) BumpClarifyAttempt() {
	wc.sideChannel[sideKeyClarifyAttempt] = wc.ClarifyAttempt() + 1
}

// ResetClarifyAttempt clears the counter once the gate lets the workflow proceed.
func (wc *Context) ResetClarifyAttempt() {
	delete(wc.sideChannel, sideKeyClarifyAttempt)
}

// AddUsage merges one model call's statistics into the running totals.
func (wc *Context) AddUsage(promptTokens, completionTokens, totalTokens, cacheReadTokens int) {
	wc.Usage.PromptTokens += promptTokens
	wc.Usage.CompletionTokens += completionTokens
	wc.Usage.TotalTokens += totalTokens
	wc.Usage.CacheReadTokens += cacheReadTokens
}

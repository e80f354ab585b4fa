package workflow

import (
	"context"
)

// MessageKind tags a streamed assistant message so the client can render it.
type MessageKind string

const (
	// KindClarification is a question asking the user for missing information.
	KindClarification MessageKind = "clarification"
	// KindNotice is an engine status message, e.g. proceeding on best effort.
	KindNotice MessageKind = "notice"
	// KindTaskResult is an intermediate sub-task result.
	KindTaskResult MessageKind = "task_result"
	// KindPlan carries the decomposed task list.
	KindPlan MessageKind = "plan"
	// KindFinalAnswer is the synthesized answer ending the stream.
	KindFinalAnswer MessageKind = "final_answer"
	// KindError is the single generic failure notice of a failed workflow.
	KindError MessageKind = "error"
)

// Stream is the message transport for one inbound request. Delivery failure
// must never crash a workflow; the engine logs and moves on.
type Stream interface {
	// SendPartial streams an intermediate assistant message.
	SendPartial(kind MessageKind, text string) error
	// SendFinal streams the terminal message of the request.
	SendFinal(kind MessageKind, text string) error
	// Fail reports a workflow failure to the client.
	Fail(err error) error
}

// StoredMessage is one conversation turn to persist.
type StoredMessage struct {
	Role    string // user, assistant
	Content string
}

// ConversationStore persists user/assistant turns generated during
// clarification rounds and the final answer, so a resumed session sees
// consistent history. Append failures are logged, never fatal: in-memory
// state stays authoritative for the current request.
type ConversationStore interface {
	AppendMessages(ctx context.Context, sessionID string, userID int32, msgs []StoredMessage) error
}

package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lumenchat/lumen/ai/core/llm"
)

// scripted is one canned model reply.
type scripted struct {
	text string
	err  error
}

// scriptedLLM replays canned replies in order and records every prompt it saw.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []scripted
	calls   [][]llm.Message
}

func newScriptedLLM(replies ...scripted) *scriptedLLM {
	return &scriptedLLM{replies: replies}
}

func (s *scriptedLLM) next(msgs []llm.Message) scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msgs)
	if len(s.replies) == 0 {
		return scripted{err: errors.New("script exhausted")}
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// prompt returns the final message content of the i-th recorded call.
func (s *scriptedLLM) prompt(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.calls[i]
	return msgs[len(msgs)-1].Content
}

func (s *scriptedLLM) Chat(_ context.Context, msgs []llm.Message) (string, *llm.CallStats, error) {
	r := s.next(msgs)
	if r.err != nil {
		return "", nil, r.err
	}
	return r.text, &llm.CallStats{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (s *scriptedLLM) ChatStream(_ context.Context, msgs []llm.Message) (<-chan string, <-chan *llm.CallStats, <-chan error) {
	contentCh := make(chan string, 8)
	statsCh := make(chan *llm.CallStats, 1)
	errCh := make(chan error, 1)

	r := s.next(msgs)
	go func() {
		defer close(contentCh)
		defer close(statsCh)
		defer close(errCh)
		if r.err != nil {
			errCh <- r.err
			return
		}
		// Two chunks to exercise reassembly.
		if half := len(r.text) / 2; half > 0 {
			contentCh <- r.text[:half]
			contentCh <- r.text[half:]
		} else {
			contentCh <- r.text
		}
		statsCh <- &llm.CallStats{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	}()
	return contentCh, statsCh, errCh
}

func (s *scriptedLLM) Warmup(context.Context) {}

// sentMessage is one message captured by memStream.
type sentMessage struct {
	kind  MessageKind
	text  string
	final bool
}

// memStream records everything sent through it.
type memStream struct {
	mu       sync.Mutex
	messages []sentMessage
	failures []error
}

func (m *memStream) SendPartial(kind MessageKind, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{kind: kind, text: text})
	return nil
}

func (m *memStream) SendFinal(kind MessageKind, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{kind: kind, text: text, final: true})
	return nil
}

func (m *memStream) Fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
	return nil
}

// ofKind returns the captured messages with the given kind, in order.
func (m *memStream) ofKind(kind MessageKind) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMessage
	for _, msg := range m.messages {
		if msg.kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

// memConversationStore records appended turns per session.
type memConversationStore struct {
	mu       sync.Mutex
	appended []StoredMessage
}

func (m *memConversationStore) AppendMessages(_ context.Context, _ string, _ int32, msgs []StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, msgs...)
	return nil
}

func (m *memConversationStore) turns() []StoredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StoredMessage(nil), m.appended...)
}

// countingObserver tallies lifecycle notifications. The engine runs on the
// calling goroutine, so plain counters suffice.
type countingObserver struct {
	started, parked, resumed, evicted, finished int
}

func (o *countingObserver) WorkflowStarted()                                 { o.started++ }
func (o *countingObserver) WorkflowParked()                                  { o.parked++ }
func (o *countingObserver) WorkflowResumed()                                 { o.resumed++ }
func (o *countingObserver) WorkflowEvicted()                                 { o.evicted++ }
func (o *countingObserver) WorkflowFinished(Phase, TokenUsage, time.Duration) { o.finished++ }

// Canned gate verdicts.
const (
	verdictComplete   = `{"info_complete": true, "missing_info_prompt": ""}`
	verdictIncomplete = `{"info_complete": false, "missing_info_prompt": "Which city are you asking about?"}`
)

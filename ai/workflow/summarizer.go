package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumenchat/lumen/ai/core/llm"
)

// Summarizer merges all sub-task results into one coherent user-facing answer
// with a final model call, streamed chunk-wise to the client.
type Summarizer struct {
	llm     llm.Service
	prompts *PromptConfig
}

// NewSummarizer creates a result summarizer.
func NewSummarizer(llmService llm.Service, prompts *PromptConfig) *Summarizer {
	if prompts == nil {
		prompts = GetPromptConfig()
	}
	return &Summarizer{llm: llmService, prompts: prompts}
}

// Summarize returns the synthesized final answer. Chunks are streamed as
// partial messages while they arrive; the caller sends the assembled answer
// as the stream's final message and persists it.
func (s *Summarizer) Summarize(ctx context.Context, wc *Context, stream Stream) (string, error) {
	startTime := time.Now()

	slog.Info("summarizer: start",
		"workflow_id", wc.ID,
		"result_count", len(wc.TaskResults),
	)

	prompt := s.prompts.BuildSummarizerPrompt(wc.ClarifiedRequest(), wc.TaskResults)
	contentCh, statsCh, errCh := s.llm.ChatStream(ctx, []llm.Message{llm.UserMessage(prompt)})

	var sb strings.Builder
	for chunk := range contentCh {
		sb.WriteString(chunk)
		if err := stream.SendPartial(KindFinalAnswer, chunk); err != nil {
			slog.Warn("summarizer: chunk delivery failed", "workflow_id", wc.ID, "error", err)
		}
	}

	if stats := <-statsCh; stats != nil {
		wc.AddUsage(stats.PromptTokens, stats.CompletionTokens, stats.TotalTokens, stats.CacheReadTokens)
	}
	if err := <-errCh; err != nil {
		slog.Error("summarizer: model call failed", "workflow_id", wc.ID, "error", err)
		return "", fmt.Errorf("summarization: %w", err)
	}

	answer := sb.String()
	if strings.TrimSpace(answer) == "" {
		// A stream that completed without content is as bad as an error.
		return "", fmt.Errorf("summarization: empty answer")
	}

	slog.Info("summarizer: complete",
		"workflow_id", wc.ID,
		"answer_length", len(answer),
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return answer, nil
}

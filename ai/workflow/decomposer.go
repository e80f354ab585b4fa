package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumenchat/lumen/ai/core/llm"
)

// Decomposer turns the (possibly clarified) user request into an ordered list
// of independent sub-task descriptions with a single model call.
type Decomposer struct {
	llm     llm.Service
	prompts *PromptConfig
}

// NewDecomposer creates a task decomposer.
func NewDecomposer(llmService llm.Service, prompts *PromptConfig) *Decomposer {
	if prompts == nil {
		prompts = GetPromptConfig()
	}
	return &Decomposer{llm: llmService, prompts: prompts}
}

// Decompose populates wc.TaskList from the clarified request. A response with
// zero usable lines falls back to a single task carrying the request verbatim;
// decomposition never produces an empty plan. A model failure is fatal to the
// workflow.
func (d *Decomposer) Decompose(ctx context.Context, wc *Context) error {
	startTime := time.Now()

	// The clarified request keeps the original input even after clarification
	// rounds have replaced CurrentInput with the latest reply.
	request := wc.ClarifiedRequest()

	slog.Info("decomposer: start",
		"workflow_id", wc.ID,
		"input_length", len(request),
	)

	prompt := d.prompts.BuildDecomposerPrompt(request)
	response, stats, err := d.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)})
	if stats != nil {
		wc.AddUsage(stats.PromptTokens, stats.CompletionTokens, stats.TotalTokens, stats.CacheReadTokens)
	}
	if err != nil {
		slog.Error("decomposer: model call failed", "workflow_id", wc.ID, "error", err)
		return fmt.Errorf("decomposition: %w", err)
	}

	tasks := parseTaskLines(response)
	if len(tasks) == 0 {
		slog.Warn("decomposer: no usable lines, falling back to single task",
			"workflow_id", wc.ID,
			"response_length", len(response),
		)
		tasks = []string{request}
	}
	wc.TaskList = append(wc.TaskList, tasks...)

	slog.Info("decomposer: complete",
		"workflow_id", wc.ID,
		"task_count", len(wc.TaskList),
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return nil
}

// parseTaskLines splits the model response into sub-task descriptions: one
// per line, blank lines discarded, stray code fences and list markers
// stripped even though the prompt forbids them.
func parseTaskLines(response string) []string {
	var tasks []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line = strings.TrimSpace(line); line != "" {
			tasks = append(tasks, line)
		}
	}
	return tasks
}

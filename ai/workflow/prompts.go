package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lumenchat/lumen/ai/configloader"
)

// Config path for workflow prompts.
const promptsConfigPath = "config/workflow/prompts.yaml"

// PromptConfig holds the instruction text used at each workflow phase.
type PromptConfig struct {
	Gate       GatePrompts       `yaml:"gate"`
	Decomposer DecomposerPrompts `yaml:"decomposer"`
	Executor   ExecutorPrompts   `yaml:"executor"`
	Summarizer SummarizerPrompts `yaml:"summarizer"`
}

// GatePrompts holds prompts for the info-completeness check.
type GatePrompts struct {
	Instruction     string `yaml:"instruction"`
	ProceedNotice   string `yaml:"proceed_notice"`
	TaskInstruction string `yaml:"task_instruction"`
}

// DecomposerPrompts holds prompts for task decomposition.
type DecomposerPrompts struct {
	Instruction         string `yaml:"instruction"`
	UserRequestTemplate string `yaml:"user_request_template"`
}

// ExecutorPrompts holds prompts for sub-task execution.
type ExecutorPrompts struct {
	Instruction          string `yaml:"instruction"`
	UserRequestTemplate  string `yaml:"user_request_template"`
	CurrentTaskTemplate  string `yaml:"current_task_template"`
	PriorResultsTemplate string `yaml:"prior_results_template"`
}

// SummarizerPrompts holds prompts for final synthesis.
type SummarizerPrompts struct {
	Instruction         string `yaml:"instruction"`
	UserRequestTemplate string `yaml:"user_request_template"`
	ResultsTemplate     string `yaml:"results_template"`
}

// Global prompt config with lazy loading.
var (
	promptConfig     *PromptConfig
	promptConfigOnce sync.Once
	configDir        string // Can be overridden for testing
)

// SetConfigDir overrides the default config directory.
func SetConfigDir(dir string) {
	configDir = dir
	promptConfigOnce = sync.Once{} // Reset for reload
	promptConfig = nil
}

// GetPromptConfig returns the global prompt config, loading the YAML file if
// present and falling back to compiled-in defaults otherwise.
func GetPromptConfig() *PromptConfig {
	promptConfigOnce.Do(func() {
		cfg := defaultPromptConfig()

		base := configDir
		if base == "" {
			base = getBaseDir()
		}
		loader := configloader.NewLoader(base)
		if err := loader.Load(promptsConfigPath, cfg); err != nil {
			// Defaults stay in effect; a missing file is the common case.
			promptConfig = defaultPromptConfig()
			return
		}
		promptConfig = cfg
	})
	return promptConfig
}

func getBaseDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(execPath)
}

func defaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Gate: GatePrompts{
			Instruction: `You are the request screener for Lumen, an AI assistant platform.
Decide whether the conversation above contains enough information to act on the user's request.

Respond with JSON only, no markdown:
{"info_complete": true/false, "missing_info_prompt": "question to ask the user"}

Rules:
1. info_complete is true when a competent assistant could produce a useful answer without asking anything.
2. When false, missing_info_prompt must be a single, specific, friendly question covering everything still needed.
3. Do not ask about preferences that have sensible defaults. Only ask when the request is unactionable without the answer.`,
			ProceedNotice: "I'll proceed with the information available so far.",
			TaskInstruction: `You are the request screener for Lumen.
The assistant is about to work on the step below as part of the user's request.
Decide whether the step is described concretely enough to execute.

Respond with JSON only, no markdown:
{"info_complete": true/false, "missing_info_prompt": "question to ask the user"}`,
		},
		Decomposer: DecomposerPrompts{
			Instruction: `You are the task planner for Lumen.
Break the user's request into an ordered list of independent, self-contained sub-tasks.

Output rules:
1. One sub-task per line. No numbering, no bullets, no commentary.
2. Each line must be understandable on its own, without the other lines.
3. Use as few sub-tasks as the request genuinely needs; a simple request is a single line.`,
			UserRequestTemplate: "## User request\n%s",
		},
		Executor: ExecutorPrompts{
			Instruction: `You are an expert assistant working through a plan step by step.
Complete only the current step. Use the earlier findings as context where they help.
Reply with the step's result only, no preamble.`,
			UserRequestTemplate:  "## Original request\n%s",
			CurrentTaskTemplate:  "## Current step\n%s",
			PriorResultsTemplate: "## Earlier findings\n%s",
		},
		Summarizer: SummarizerPrompts{
			Instruction: `You are the voice of Lumen answering the user.
Merge the findings below into one coherent, well-structured answer to the original request.
Do not mention steps, plans, or that the work was split up. Answer as if in one pass.`,
			UserRequestTemplate: "## Original request\n%s",
			ResultsTemplate:     "## Findings\n%s",
		},
	}
}

// BuildGatePrompt renders the completeness-check instruction as the final
// user message of the classification conversation.
func (c *PromptConfig) BuildGatePrompt() string {
	return c.Gate.Instruction
}

// BuildTaskGatePrompt renders the pre-execution ambiguity check for one task.
func (c *PromptConfig) BuildTaskGatePrompt(task string) string {
	return fmt.Sprintf("%s\n\n## Step\n%s", c.Gate.TaskInstruction, task)
}

// BuildDecomposerPrompt renders the decomposition prompt.
func (c *PromptConfig) BuildDecomposerPrompt(userInput string) string {
	return fmt.Sprintf("%s\n\n%s",
		c.Decomposer.Instruction,
		fmt.Sprintf(c.Decomposer.UserRequestTemplate, userInput))
}

// BuildExecutorPrompt renders the execution prompt for one sub-task with the
// cumulative results of all prior sub-tasks.
func (c *PromptConfig) BuildExecutorPrompt(userInput, task string, prior []TaskResult) string {
	var sb strings.Builder
	sb.WriteString(c.Executor.Instruction)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf(c.Executor.UserRequestTemplate, userInput))
	if len(prior) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(fmt.Sprintf(c.Executor.PriorResultsTemplate, renderResults(prior)))
	}
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf(c.Executor.CurrentTaskTemplate, task))
	return sb.String()
}

// BuildSummarizerPrompt renders the synthesis prompt from all task results.
func (c *PromptConfig) BuildSummarizerPrompt(userInput string, results []TaskResult) string {
	return fmt.Sprintf("%s\n\n%s\n\n%s",
		c.Summarizer.Instruction,
		fmt.Sprintf(c.Summarizer.UserRequestTemplate, userInput),
		fmt.Sprintf(c.Summarizer.ResultsTemplate, renderResults(results)))
}

// renderResults replays (task, result) pairs verbatim in insertion order.
func renderResults(results []TaskResult) string {
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s\n%s\n\n", i+1, r.Task, r.Result)
	}
	return strings.TrimRight(sb.String(), "\n")
}

package loop

import (
	"fmt"
	"strings"
)

// PromptInput carries everything the iteration preamble needs.
type PromptInput struct {
	// Task is the assembled task content: change/module context plus
	// the user prompt.
	Task string
	// Iteration is the 1-based iteration number shown to the harness.
	Iteration int
	// MaxIterations is the configured ceiling; 0 renders as unlimited.
	MaxIterations int
	// MinIterations is the count required before a promise is honored.
	MinIterations int
	// CompletionPromise is the token the harness must emit.
	CompletionPromise string
	// PendingContext holds carried notes from previous iterations:
	// user-added context, harness failures, rejected completions.
	PendingContext []string
}

// BuildTask joins context sections and the user prompt. Empty sections
// are dropped; the rest are separated by horizontal rules.
func BuildTask(sections ...string) string {
	var kept []string
	for _, section := range sections {
		if s := strings.TrimSpace(section); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n\n---\n\n")
}

// BuildPrompt assembles the full prompt for one iteration: the loop
// preamble, any injected context, the task, and the completion rules.
func BuildPrompt(in PromptInput) string {
	contextSection := ""
	if joined := strings.TrimSpace(strings.Join(in.PendingContext, "\n\n---\n\n")); joined != "" {
		contextSection = fmt.Sprintf(
			"\n## Injected Context\n\nRalph carried the notes below from previous iterations (user-added context, harness failures, rejected completion promises). Address them before continuing.\n\n%s\n\n---\n",
			joined)
	}

	maxStr := " (unlimited)"
	if in.MaxIterations > 0 {
		maxStr = fmt.Sprintf(" / %d", in.MaxIterations)
	}

	prompt := fmt.Sprintf(`# Ralph Wiggum Loop - Iteration %d

You are in an iterative development loop. Work on the task below until you can genuinely complete it.

Important: Ralph validates completion promises before exiting (tasks + project checks/tests).
%s## Your Task

%s

## Instructions

1. Read the current state of files to understand what's been done
2. **Update your todo list** - Use the TodoWrite tool to track progress and plan remaining work
3. Make progress on the task
4. Run tests/verification if applicable
5. When the task is GENUINELY COMPLETE, output:
   <promise>%s</promise>

## Critical Rules

- ONLY output <promise>%s</promise> when the task is truly done
- Do NOT lie or output false promises to exit the loop
- If stuck, try a different approach
- Check your work before claiming completion
- The loop will continue until you succeed
- **IMPORTANT**: Update your todo list at the start of each iteration to show progress

## AUTONOMY REQUIREMENTS (CRITICAL)

- **DO NOT ASK QUESTIONS** - This is an autonomous loop with no human interaction
- **DO NOT USE THE QUESTION TOOL** - Work independently without prompting for input
- Make reasonable assumptions when information is missing
- Use your best judgment to resolve ambiguities
- If multiple approaches exist, choose the most reasonable one and proceed
- The orchestrator cannot respond to questions - you must be self-sufficient
- Trust your training and make decisions autonomously

## Current Iteration: %d%s (min: %d)

Now, work on the task autonomously. Good luck!`,
		in.Iteration,
		contextSection,
		strings.TrimSpace(in.Task),
		in.CompletionPromise,
		in.CompletionPromise,
		in.Iteration,
		maxStr,
		in.MinIterations,
	)
	return strings.TrimSpace(prompt)
}

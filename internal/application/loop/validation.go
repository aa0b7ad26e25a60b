package loop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/agentloop/ralph/internal/domain/repository"
)

const (
	// validationCommandTimeout bounds each gate command.
	validationCommandTimeout = 5 * time.Minute
	// contextTruncateBytes bounds output injected into pending context.
	contextTruncateBytes = 12000
)

// ValidationResult is the outcome of one validation gate step.
type ValidationResult struct {
	Success bool
	Message string
	Output  string
}

// GateReport is the outcome of the full validation gate for one
// detected completion promise.
type GateReport struct {
	// Passed is true only when every gate step succeeded.
	Passed bool
	// ContextMarkdown renders all step results for prompt injection.
	ContextMarkdown string
}

// Gate verifies a detected completion promise: all tasks of the change
// must be complete or shelved, the discovered project validation
// commands must pass, and so must the optional extra command.
type Gate struct {
	fs    afero.Fs
	tasks repository.TaskRepository

	// run executes one shell command. Tests swap it out.
	run shellRunner
}

// NewGate creates a validation gate.
func NewGate(fs afero.Fs, tasks repository.TaskRepository) *Gate {
	return &Gate{fs: fs, tasks: tasks, run: runShellCommand}
}

// Validate runs the gate steps in order and renders a combined report.
// dir is the effective working directory of the iteration; home is the
// (possibly re-rooted) ralph home consulted for config.json. An empty
// changeID skips the task step. Errors are infrastructure failures
// (task store unreachable), not validation failures.
func (g *Gate) Validate(ctx context.Context, changeID, dir, home, extraCommand string) (*GateReport, error) {
	passed := true
	var sections []string

	if changeID != "" {
		taskResult, err := g.checkTaskCompletion(ctx, changeID)
		if err != nil {
			return nil, err
		}
		sections = append(sections, renderValidationResult("Task status", taskResult))
		if !taskResult.Success {
			passed = false
		}
	} else {
		sections = append(sections,
			"### Task status\n\n- Result: SKIP\n- Summary: No change selected; skipped task validation")
	}

	project := g.runProjectValidation(ctx, dir, home)
	sections = append(sections, renderValidationResult("Project validation", project))
	if !project.Success {
		passed = false
	}

	if extraCommand != "" {
		extra := g.runExtraValidation(ctx, dir, extraCommand)
		sections = append(sections, renderValidationResult("Extra validation", extra))
		if !extra.Success {
			passed = false
		}
	}

	return &GateReport{Passed: passed, ContextMarkdown: strings.Join(sections, "\n\n")}, nil
}

// checkTaskCompletion verifies every task of the change is complete or
// shelved. A change with no tasks passes.
func (g *Gate) checkTaskCompletion(ctx context.Context, changeID string) (*ValidationResult, error) {
	summary, err := g.tasks.Summarize(ctx, changeID)
	if err != nil {
		return nil, fmt.Errorf("summarize tasks for %s: %w", changeID, err)
	}

	if summary.Total == 0 {
		return &ValidationResult{
			Success: true,
			Message: "No tasks configured; skipping task status validation",
		}, nil
	}

	success := summary.AllResolved()
	lines := []string{
		fmt.Sprintf("Total: %d", summary.Total),
		fmt.Sprintf("Complete: %d", summary.Complete),
		fmt.Sprintf("Shelved: %d", summary.Shelved),
		fmt.Sprintf("In-progress: %d", summary.InProgress),
		fmt.Sprintf("Pending: %d", summary.Pending),
		fmt.Sprintf("Remaining: %d", summary.Remaining()),
	}

	if !success {
		incomplete, err := g.tasks.ListIncomplete(ctx, changeID)
		if err != nil {
			return nil, fmt.Errorf("list incomplete tasks for %s: %w", changeID, err)
		}
		lines = append(lines, "", "Incomplete tasks:")
		for _, t := range incomplete {
			lines = append(lines, fmt.Sprintf("- %s (%s) %s", t.ID, t.Status, t.Name))
		}
	}

	message := "All tasks are complete or shelved"
	if !success {
		message = "Tasks remain pending or in-progress"
	}
	return &ValidationResult{Success: success, Message: message, Output: strings.Join(lines, "\n")}, nil
}

// runProjectValidation discovers and runs the project's validation
// commands. Nothing configured passes with a warning.
func (g *Gate) runProjectValidation(ctx context.Context, dir, home string) *ValidationResult {
	commands := g.discoverValidationCommands(dir, home)
	if len(commands) == 0 {
		return &ValidationResult{
			Success: true,
			Message: "Warning: no project validation configured; skipping",
		}
	}

	var combined []string
	for _, cmd := range commands {
		out := g.run(ctx, dir, cmd)
		combined = append(combined, out.render())
		if !out.success() {
			return &ValidationResult{
				Success: false,
				Message: fmt.Sprintf("Project validation failed: `%s`", cmd),
				Output:  strings.Join(combined, "\n\n"),
			}
		}
	}
	return &ValidationResult{
		Success: true,
		Message: "Project validation passed",
		Output:  strings.Join(combined, "\n\n"),
	}
}

// runExtraValidation runs the user-supplied extra command.
func (g *Gate) runExtraValidation(ctx context.Context, dir, command string) *ValidationResult {
	out := g.run(ctx, dir, command)
	message := fmt.Sprintf("Extra validation passed: `%s`", command)
	if !out.success() {
		message = fmt.Sprintf("Extra validation failed: `%s`", command)
	}
	return &ValidationResult{Success: out.success(), Message: message, Output: out.render()}
}

// validationCommandPointers are the JSON paths consulted, most specific
// first. The first pointer yielding commands wins.
var validationCommandPointers = []string{
	"/ralph/validationCommands",
	"/ralph/validationCommand",
	"/ralph/validation/commands",
	"/ralph/validation/command",
	"/validationCommands",
	"/validationCommand",
	"/project/validationCommands",
	"/project/validationCommand",
	"/project/validation/commands",
	"/project/validation/command",
}

// discoverValidationCommands walks the configuration sources in
// priority order: ralph.json in the working directory, config.json in
// the ralph home, then the AGENTS.md / CLAUDE.md heuristics. The first
// source with commands wins.
func (g *Gate) discoverValidationCommands(dir, home string) []string {
	sources := []struct {
		path string
		json bool
	}{
		{filepath.Join(dir, "ralph.json"), true},
		{filepath.Join(home, "config.json"), true},
		{filepath.Join(dir, "AGENTS.md"), false},
		{filepath.Join(dir, "CLAUDE.md"), false},
	}

	for _, src := range sources {
		raw, err := afero.ReadFile(g.fs, src.path)
		if err != nil {
			continue
		}
		var commands []string
		if src.json {
			commands = commandsFromJSON(raw)
		} else {
			commands = commandsFromMarkdown(string(raw))
		}
		if len(commands) > 0 {
			return commands
		}
	}
	return nil
}

func commandsFromJSON(raw []byte) []string {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	for _, pointer := range validationCommandPointers {
		value, ok := lookupJSONPointer(doc, pointer)
		if !ok {
			continue
		}
		if commands := normalizeCommands(value); len(commands) > 0 {
			return commands
		}
	}
	return nil
}

// lookupJSONPointer resolves a slash-separated pointer over decoded
// JSON. Only object traversal is needed here.
func lookupJSONPointer(doc interface{}, pointer string) (interface{}, bool) {
	current := doc
	for _, key := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// normalizeCommands accepts a string or an array of strings; anything
// else yields no commands.
func normalizeCommands(value interface{}) []string {
	switch v := value.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []interface{}:
		var out []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// commandsFromMarkdown accepts literal `make check` / `make test`
// lines anywhere in the document.
func commandsFromMarkdown(contents string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(contents, "\n") {
		l := strings.TrimSpace(line)
		if (l == "make check" || l == "make test") && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// shellResult captures one validation command execution.
type shellResult struct {
	command  string
	exitCode int
	timedOut bool
	stdout   string
	stderr   string
}

func (r *shellResult) success() bool {
	return r.exitCode == 0 && !r.timedOut
}

func (r *shellResult) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", r.command)
	switch {
	case r.timedOut:
		b.WriteString("Result: TIMEOUT\n")
	case r.success():
		b.WriteString("Result: PASS\n")
	default:
		fmt.Fprintf(&b, "Result: FAIL (exit %d)\n", r.exitCode)
	}
	if strings.TrimSpace(r.stdout) != "" {
		b.WriteString("\nStdout:\n")
		b.WriteString(truncateForContext(r.stdout, contextTruncateBytes))
		b.WriteString("\n")
	}
	if strings.TrimSpace(r.stderr) != "" {
		b.WriteString("\nStderr:\n")
		b.WriteString(truncateForContext(r.stderr, contextTruncateBytes))
		b.WriteString("\n")
	}
	return b.String()
}

// shellRunner executes one shell command in dir with the gate timeout.
type shellRunner func(ctx context.Context, dir, command string) *shellResult

// runShellCommand executes `sh -c command` in dir. The command is a
// plain child process, not supervised by the inactivity watchdog.
func runShellCommand(ctx context.Context, dir, command string) *shellResult {
	ctx, cancel := context.WithTimeout(ctx, validationCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &shellResult{
		command:  command,
		timedOut: ctx.Err() == context.DeadlineExceeded,
		stdout:   stdout.String(),
		stderr:   stderr.String(),
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.exitCode = exitErr.ExitCode()
		} else {
			result.exitCode = -1
			if result.stderr == "" {
				result.stderr = err.Error()
			}
		}
	}
	return result
}

// truncateForContext bounds s to maxBytes on a UTF-8 boundary, marking
// the cut.
func truncateForContext(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	end := maxBytes
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + "\n... (truncated) ..."
}

// renderValidationResult formats one gate step as a markdown section.
func renderValidationResult(title string, r *ValidationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", title)
	result := "FAIL"
	if r.Success {
		result = "PASS"
	}
	fmt.Fprintf(&b, "- Result: %s\n", result)
	fmt.Fprintf(&b, "- Summary: %s\n", strings.TrimSpace(r.Message))
	if out := strings.TrimSpace(r.Output); out != "" {
		b.WriteString("\nOutput:\n\n```text\n")
		b.WriteString(out)
		b.WriteString("\n```\n")
	}
	return b.String()
}

// renderHarnessFailure formats a non-retriable harness failure for
// prompt injection.
func renderHarnessFailure(name string, exitCode int, stdout, stderr string) string {
	var b strings.Builder
	b.WriteString("### Harness execution\n\n")
	b.WriteString("- Result: FAIL\n")
	fmt.Fprintf(&b, "- Harness: %s\n", name)
	fmt.Fprintf(&b, "- Exit code: %d\n", exitCode)
	if out := strings.TrimSpace(stdout); out != "" {
		b.WriteString("\nStdout:\n\n```text\n")
		b.WriteString(truncateForContext(out, contextTruncateBytes))
		b.WriteString("\n```\n")
	}
	if errOut := strings.TrimSpace(stderr); errOut != "" {
		b.WriteString("\nStderr:\n\n```text\n")
		b.WriteString(truncateForContext(errOut, contextTruncateBytes))
		b.WriteString("\n```\n")
	}
	return b.String()
}

// Package loop implements the agent loop orchestrator: target
// selection, working-directory resolution across git worktrees, prompt
// assembly, harness supervision, exit classification, and the
// completion validation gate.
package loop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/agentloop/ralph/internal/app"
	"github.com/agentloop/ralph/internal/application/port/output"
	"github.com/agentloop/ralph/internal/domain/repository"
	"github.com/agentloop/ralph/internal/interface/external/gitcli"
	"github.com/agentloop/ralph/internal/interface/external/harness"
)

// Deps carries the collaborators one Runner drives. Audit and Archive
// are optional; everything else is required.
type Deps struct {
	Fs        afero.Fs
	Harness   harness.Harness
	WorkItems repository.WorkItemRepository
	Tasks     repository.TaskRepository
	Audit     repository.AuditSink
	Archive   output.ArchiveGateway
	Git       *gitcli.Client

	// Worktrees resolves a change ID to a worktree path. Nil defaults
	// to git discovery over WorkDir.
	Worktrees        WorktreeLookup
	WorktreesEnabled bool

	// Home is the base ralph home; iterations may re-root it into a
	// resolved worktree.
	Home string
	// WorkDir is the fallback working directory.
	WorkDir string

	Stdout io.Writer
	Stderr io.Writer
}

// cycleOutcome is the result of one iteration cycle.
type cycleOutcome int

const (
	// cycleContinue keeps the loop going: ordinary progress, an
	// injected failure, or a rejected promise.
	cycleContinue cycleOutcome = iota
	// cycleCompleted means a completion promise was accepted.
	cycleCompleted
)

// Runner drives the agent loop for one invocation. It is not safe for
// concurrent use; one Runner supervises at most one harness process at
// a time.
type Runner struct {
	opts     Options
	deps     Deps
	states   *StateStore
	gate     *Gate
	selector *Selector

	runID  string
	cycles int
}

// NewRunner validates the options and assembles a runner.
func NewRunner(opts Options, deps Deps) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if deps.Harness == nil {
		return nil, errors.New("harness is required")
	}
	if deps.WorkItems == nil || deps.Tasks == nil {
		return nil, errors.New("work item and task repositories are required")
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Git == nil {
		deps.Git = gitcli.New()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		deps.WorkDir = wd
	}
	if deps.Worktrees == nil {
		deps.Worktrees = GitWorktreeLookup(deps.Git, deps.WorkDir)
	}

	return &Runner{
		opts:     opts,
		deps:     deps,
		states:   NewStateStore(deps.Fs, deps.Home),
		gate:     NewGate(deps.Fs, deps.Tasks),
		selector: NewSelector(deps.WorkItems),
		runID:    uuid.New().String(),
	}, nil
}

// RunID returns the identifier stamped on this invocation's audit
// events and archived transcripts.
func (r *Runner) RunID() string {
	return r.runID
}

// Run drives the loop until completion, abort, blocked, or
// cancellation. Map the returned error to a process exit code with
// ExitCodeFor.
func (r *Runner) Run(ctx context.Context) error {
	err := r.run(ctx)
	if err != nil {
		r.emitAudit(context.WithoutCancel(ctx), &repository.AuditEvent{
			Kind:     repository.EventLoopAborted,
			ChangeID: r.opts.ChangeID,
			Detail:   err.Error(),
		})
	}
	return err
}

func (r *Runner) run(ctx context.Context) error {
	switch {
	case r.opts.ContinueReady:
		r.emitStarted(ctx, "", "continue-ready")
		return r.drain(ctx, repository.Scope{}, "")
	case r.opts.ContinueModule:
		r.emitStarted(ctx, "", "continue-module")
		return r.drain(ctx, repository.Scope{Module: r.opts.Module}, r.opts.Module)
	}

	changeID, run, err := r.resolveSingleTarget(ctx)
	if err != nil {
		return err
	}
	if !run {
		return nil
	}

	mode := "single"
	if r.opts.ChangeID == "" {
		mode = "unscoped"
		if r.opts.Module != "" {
			mode = "module"
		}
	}
	r.emitStarted(ctx, changeID, mode)
	return r.single(ctx, changeID)
}

// resolveSingleTarget fixes the change driven by a non-continuation
// run: the explicit change, the lowest eligible change of the module,
// or no change at all. The second result is false when there is
// nothing to run.
func (r *Runner) resolveSingleTarget(ctx context.Context) (string, bool, error) {
	if r.opts.ChangeID != "" {
		item, err := r.deps.WorkItems.Find(ctx, r.opts.ChangeID)
		if err != nil {
			return "", false, err
		}
		if item == nil {
			return "", false, abortf("change %s is not registered; register it with 'ralph change register'", r.opts.ChangeID)
		}
		return item.ID, true, nil
	}

	if r.opts.Module != "" {
		scope := repository.Scope{Module: r.opts.Module}
		selection, err := r.selector.Select(ctx, scope)
		if err != nil {
			return "", false, err
		}
		if selection.Total == 0 {
			return "", false, abortf("no changes registered for module %s", r.opts.Module)
		}
		r.printEligible(r.opts.Module, selection.Eligible)
		if selection.Done() {
			r.printScopeComplete(r.opts.Module)
			return "", false, nil
		}
		if selection.Blocked() {
			return "", false, &BlockedError{Module: r.opts.Module, Items: selection.Incomplete}
		}
		return selection.Eligible[0], true, nil
	}

	// Unscoped run: no change or module context; state is kept under a
	// fixed key so history and pending context still work.
	return "", true, nil
}

// single iterates one fixed target until a promise is accepted or a
// stop condition fires.
func (r *Runner) single(ctx context.Context, changeID string) error {
	r.printStartupBanner(changeID)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.ceilingReached() {
			r.printCeiling()
			return nil
		}
		outcome, err := r.runIteration(ctx, changeID)
		if err != nil {
			return err
		}
		if outcome == cycleCompleted {
			return nil
		}
	}
}

// drain repeatedly selects and iterates the lowest eligible change in
// scope. Eligibility is re-queried before every iteration so work
// completed or reopened by a concurrent process is picked up.
func (r *Runner) drain(ctx context.Context, scope repository.Scope, module string) error {
	lastSelected := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.ceilingReached() {
			r.printCeiling()
			return nil
		}

		selection, err := r.selector.Select(ctx, scope)
		if err != nil {
			return err
		}
		if module != "" && selection.Total == 0 {
			return abortf("no changes registered for module %s", module)
		}
		if selection.Done() {
			r.printScopeComplete(module)
			return nil
		}
		if selection.Blocked() {
			return &BlockedError{Module: module, Items: selection.Incomplete}
		}
		next := selection.Eligible[0]

		// Second query immediately before starting; a shifted first
		// candidate is reported rather than silently switched.
		preflight, err := r.selector.Select(ctx, scope)
		if err != nil {
			return err
		}
		if preflight.Done() {
			r.printScopeComplete(module)
			return nil
		}
		if preflight.Blocked() {
			return &BlockedError{Module: module, Items: preflight.Incomplete}
		}
		if first := preflight.Eligible[0]; first != next {
			fmt.Fprintf(r.deps.Stdout, "\nWork state shifted before start; reorienting from %s to %s.\n", next, first)
			next = first
		}

		if next != lastSelected {
			r.printEligible(module, preflight.Eligible)
			fmt.Fprintf(r.deps.Stdout, "\nStarting change %s (lowest eligible change id).\n", next)
			r.printStartupBanner(next)
			lastSelected = next
		}

		outcome, err := r.runIteration(ctx, next)
		if err != nil {
			return err
		}
		if outcome == cycleCompleted {
			if err := r.guardDrainProgress(ctx, next); err != nil {
				return err
			}
		}
	}
}

// guardDrainProgress aborts when an accepted completion left the
// change still eligible; re-selecting it would loop forever.
func (r *Runner) guardDrainProgress(ctx context.Context, changeID string) error {
	status, err := r.deps.WorkItems.GetStatus(ctx, changeID)
	if err != nil {
		return err
	}
	if status.IsEligible() {
		return abortf("change %s completed its loop but its status is still %s; complete or shelve its tasks, or mark it complete with 'ralph change set-status'", changeID, status)
	}
	return nil
}

// runIteration performs one loop cycle for changeID: resolve the
// working directory, build the prompt, invoke the harness (retrying
// retriable crashes in place), classify the exit, and check the
// completion promise. An empty changeID runs unscoped.
func (r *Runner) runIteration(ctx context.Context, changeID string) (cycleOutcome, error) {
	r.cycles++

	stateKey := changeID
	if stateKey == "" {
		stateKey = UnscopedTarget
	}

	eff := ResolveEffectiveDir(ctx, changeID, r.deps.WorktreesEnabled, r.deps.WorkDir, r.deps.Home, r.deps.Worktrees)
	store := r.states.WithHome(eff.Home)
	state, err := store.LoadOrNew(stateKey)
	if err != nil {
		return 0, err
	}

	iteration := state.IterationCount + 1
	fmt.Fprintf(r.deps.Stdout, "\n=== Ralph Loop Iteration %d ===\n\n", iteration)

	task, err := r.buildTaskContent(ctx, changeID)
	if err != nil {
		return 0, err
	}
	consumed := len(state.PendingContext)
	prompt := BuildPrompt(PromptInput{
		Task:              task,
		Iteration:         iteration,
		MaxIterations:     r.opts.MaxIterations,
		MinIterations:     r.opts.MinIterations,
		CompletionPromise: r.opts.CompletionPromise,
		PendingContext:    state.PendingContext,
	})
	if r.opts.Verbose {
		fmt.Fprintf(r.deps.Stdout, "--- Prompt sent to harness ---\n%s\n--- End of prompt ---\n\n", prompt)
	}

	for {
		run, err := r.deps.Harness.Run(ctx, harness.RunConfig{
			Prompt:            prompt,
			Model:             r.opts.Model,
			Dir:               eff.Path,
			AllowAll:          r.opts.AllowAll,
			InactivityTimeout: r.opts.InactivityTimeout,
		})
		if err != nil {
			// Spawn failure: fatal, never retried.
			return 0, abortf("harness execution failed: %v", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}

		if !r.deps.Harness.StreamsOutput() {
			if run.Stdout != "" {
				fmt.Fprint(r.deps.Stdout, run.Stdout)
			}
			if run.Stderr != "" {
				fmt.Fprint(r.deps.Stderr, run.Stderr)
			}
		}

		if run.TimedOut {
			fmt.Fprintf(r.deps.Stdout, "\n=== Inactivity timeout reached (exit code %d). ===\n\n", run.ExitCode)
		}

		if !run.Success() {
			outcome, retry, err := r.classifyFailure(store, state, run)
			if err != nil {
				return 0, err
			}
			if retry {
				continue
			}
			return outcome, nil
		}

		return r.completeIteration(ctx, changeID, eff, store, state, iteration, consumed, prompt, run)
	}
}

// classifyFailure applies the retry and error-threshold policy to a
// failing run. retry requests a rerun of the same iteration with the
// same prompt; the two counters are never touched by the same exit.
func (r *Runner) classifyFailure(store *StateStore, state *State, run *harness.RunResult) (outcome cycleOutcome, retry bool, err error) {
	name := r.deps.Harness.Name()

	if run.IsRetriable() {
		state.ConsecutiveRetriableRetries++
		if err := store.Save(state); err != nil {
			return 0, false, err
		}
		if state.ConsecutiveRetriableRetries > harness.MaxRetriableRetries {
			return 0, false, abortf("harness '%s' crashed %d consecutive times (exit code %d); giving up",
				name, state.ConsecutiveRetriableRetries, run.ExitCode)
		}
		fmt.Fprintf(r.deps.Stdout, "\n=== Harness process crashed (exit code %d, attempt %d/%d). Retrying... ===\n\n",
			run.ExitCode, state.ConsecutiveRetriableRetries, harness.MaxRetriableRetries)
		return cycleContinue, true, nil
	}

	state.ConsecutiveRetriableRetries = 0

	if r.opts.ExitOnError {
		if err := store.Save(state); err != nil {
			return 0, false, err
		}
		return 0, false, abortf("harness '%s' exited with code %d", name, run.ExitCode)
	}

	state.ErrorCount++
	if state.ErrorCount >= r.opts.ErrorThreshold {
		if err := store.Save(state); err != nil {
			return 0, false, err
		}
		return 0, false, abortf("harness '%s' exceeded non-zero exit threshold (%d/%d); last exit code %d",
			name, state.ErrorCount, r.opts.ErrorThreshold, run.ExitCode)
	}

	state.PendingContext = append(state.PendingContext,
		renderHarnessFailure(name.String(), run.ExitCode, run.Stdout, run.Stderr))
	if err := store.Save(state); err != nil {
		return 0, false, err
	}
	fmt.Fprintf(r.deps.Stdout, "\n=== Harness exited with code %d (%d/%d). Continuing to let Ralph fix it... ===\n\n",
		run.ExitCode, state.ErrorCount, r.opts.ErrorThreshold)
	return cycleContinue, false, nil
}

// completeIteration records a successful harness exit and decides
// whether a detected promise ends the loop.
func (r *Runner) completeIteration(ctx context.Context, changeID string, eff EffectiveDir, store *StateStore, state *State, iteration, consumed int, prompt string, run *harness.RunResult) (cycleOutcome, error) {
	state.ConsecutiveRetriableRetries = 0
	promise := ScanPromise(run.Stdout, r.opts.CompletionPromise)

	// Count before committing so this iteration's edits are visible.
	fileChanges := 0
	if r.deps.Harness.Name() != harness.NameStub {
		fileChanges = r.deps.Git.CountChangedFiles(ctx, eff.Path)
	}
	if !r.opts.NoCommit {
		message := fmt.Sprintf("Ralph loop iteration %d", iteration)
		if err := r.deps.Git.CommitAll(ctx, eff.Path, message); err != nil {
			return 0, abortf("commit for iteration %d failed: %v", iteration, err)
		}
	}

	if consumed > 0 {
		rest := state.PendingContext[consumed:]
		if len(rest) == 0 {
			state.PendingContext = nil
		} else {
			state.PendingContext = append([]string(nil), rest...)
		}
	}
	state.IterationCount = iteration
	state.History = append(state.History, HistoryEntry{
		Timestamp:    time.Now().UnixMilli(),
		DurationMs:   run.Duration.Milliseconds(),
		PromiseFound: promise.Detected,
		FileChanges:  fileChanges,
	})
	if err := store.Save(state); err != nil {
		return 0, err
	}

	exitCode := run.ExitCode
	r.emitAudit(ctx, &repository.AuditEvent{
		Kind:       repository.EventIterationCompleted,
		ChangeID:   changeID,
		Iteration:  iteration,
		ExitCode:   &exitCode,
		DurationMs: run.Duration.Milliseconds(),
	})
	r.archiveTranscript(ctx, changeID, iteration, prompt, run, promise.Detected)

	if !promise.Detected || iteration < r.opts.MinIterations {
		return cycleContinue, nil
	}

	if r.opts.SkipValidation {
		fmt.Fprint(r.deps.Stdout, "\n=== Warning: --skip-validation set. Completion is not verified. ===\n\n")
		fmt.Fprintf(r.deps.Stdout, "\n=== Completion promise %q detected. Loop complete. ===\n\n", r.opts.CompletionPromise)
		r.emitAudit(ctx, &repository.AuditEvent{
			Kind:      repository.EventPromiseAccepted,
			ChangeID:  changeID,
			Iteration: iteration,
			Detail:    "validation skipped",
		})
		return cycleCompleted, nil
	}

	report, err := r.gate.Validate(ctx, changeID, eff.Path, eff.Home, r.opts.ValidationCommand)
	if err != nil {
		return 0, err
	}
	if report.Passed {
		fmt.Fprintf(r.deps.Stdout, "\n=== Completion promise %q detected (validated). Loop complete. ===\n\n", r.opts.CompletionPromise)
		r.emitAudit(ctx, &repository.AuditEvent{
			Kind:      repository.EventPromiseAccepted,
			ChangeID:  changeID,
			Iteration: iteration,
			Detail:    "validated",
		})
		return cycleCompleted, nil
	}

	state.PendingContext = append(state.PendingContext, report.ContextMarkdown)
	if err := store.Save(state); err != nil {
		return 0, err
	}
	fmt.Fprint(r.deps.Stdout, "\n=== Completion promise detected, but validation failed. Continuing... ===\n\n")
	r.emitAudit(ctx, &repository.AuditEvent{
		Kind:      repository.EventPromiseRejected,
		ChangeID:  changeID,
		Iteration: iteration,
		Detail:    "validation gate failed",
	})
	return cycleContinue, nil
}

// buildTaskContent assembles the change context section and the user
// prompt. Unscoped runs get the bare prompt.
func (r *Runner) buildTaskContent(ctx context.Context, changeID string) (string, error) {
	if changeID == "" {
		return BuildTask(r.opts.Prompt), nil
	}
	item, err := r.deps.WorkItems.Find(ctx, changeID)
	if err != nil {
		return "", err
	}
	if item == nil {
		return BuildTask(r.opts.Prompt), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Change (%s)\n\n", item.ID)
	if item.Name != "" {
		fmt.Fprintf(&b, "%s\n", item.Name)
	}
	if item.Module != "" {
		fmt.Fprintf(&b, "Module: %s\n", item.Module)
	}
	fmt.Fprintf(&b, "Status: %s\n", item.Status)

	tasks, err := r.deps.Tasks.ListByChange(ctx, changeID)
	if err != nil {
		return "", err
	}
	if len(tasks) > 0 {
		b.WriteString("\nTasks:\n")
		for _, t := range tasks {
			fmt.Fprintf(&b, "- %s (%s) %s\n", t.ID, t.Status, t.Name)
		}
	}
	return BuildTask(b.String(), r.opts.Prompt), nil
}

func (r *Runner) printStartupBanner(changeID string) {
	label := changeID
	if label == "" {
		label = UnscopedTarget
	}
	fmt.Fprintf(r.deps.Stdout, "\n=== Starting Ralph for %s (harness: %s) ===\n", label, r.deps.Harness.Name())
	if r.opts.Model != "" {
		fmt.Fprintf(r.deps.Stdout, "Model: %s\n", r.opts.Model)
	}
	if r.opts.MaxIterations > 0 {
		fmt.Fprintf(r.deps.Stdout, "Max iterations: %d\n", r.opts.MaxIterations)
	}
	if r.opts.AllowAll {
		fmt.Fprintln(r.deps.Stdout, "Mode: --allow-all (auto-approve)")
	}
	if r.opts.InactivityTimeout > 0 {
		fmt.Fprintf(r.deps.Stdout, "Inactivity timeout: %s\n", r.opts.InactivityTimeout)
	}
	fmt.Fprintln(r.deps.Stdout)
}

func (r *Runner) printEligible(module string, eligible []string) {
	if module != "" {
		fmt.Fprintf(r.deps.Stdout, "\nEligible changes for module %s (ready or in-progress):\n", module)
	} else {
		fmt.Fprint(r.deps.Stdout, "\nEligible changes (ready or in-progress):\n")
	}
	if len(eligible) == 0 {
		fmt.Fprintln(r.deps.Stdout, "  (none)")
		return
	}
	for i, id := range eligible {
		if i == 0 {
			fmt.Fprintf(r.deps.Stdout, "  - %s (selected first)\n", id)
			continue
		}
		fmt.Fprintf(r.deps.Stdout, "  - %s\n", id)
	}
}

func (r *Runner) printScopeComplete(module string) {
	if module != "" {
		fmt.Fprintf(r.deps.Stdout, "\nModule %s is complete.\n", module)
		return
	}
	fmt.Fprint(r.deps.Stdout, "\nAll changes are complete.\n")
}

func (r *Runner) ceilingReached() bool {
	return r.opts.MaxIterations > 0 && r.cycles >= r.opts.MaxIterations
}

func (r *Runner) printCeiling() {
	fmt.Fprintf(r.deps.Stdout, "\n=== Reached max iterations (%d). Stopping. ===\n\n", r.opts.MaxIterations)
}

// emitAudit stamps the run ID and forwards to the sink. Failures are
// logged and swallowed; audit trouble never stops an iteration.
func (r *Runner) emitAudit(ctx context.Context, event *repository.AuditEvent) {
	if r.deps.Audit == nil {
		return
	}
	event.RunID = r.runID
	if err := r.deps.Audit.Emit(ctx, event); err != nil {
		app.GetLogger().Warn("audit emit failed: %v", err)
	}
}

func (r *Runner) emitStarted(ctx context.Context, changeID, mode string) {
	r.emitAudit(ctx, &repository.AuditEvent{
		Kind:     repository.EventLoopStarted,
		ChangeID: changeID,
		Detail:   fmt.Sprintf("mode=%s harness=%s", mode, r.deps.Harness.Name()),
	})
}

// archiveTranscript uploads the iteration transcript when an archive
// gateway is configured. Failures are logged, never fatal.
func (r *Runner) archiveTranscript(ctx context.Context, changeID string, iteration int, prompt string, run *harness.RunResult, promiseFound bool) {
	if r.deps.Archive == nil {
		return
	}
	_, err := r.deps.Archive.ArchiveTranscript(ctx, output.ArchiveTranscriptRequest{
		RunID:        r.runID,
		ChangeID:     changeID,
		Iteration:    iteration,
		Transcript:   buildTranscript(prompt, run),
		ExitCode:     run.ExitCode,
		PromiseFound: promiseFound,
		Duration:     run.Duration,
	})
	if err != nil {
		app.GetLogger().Warn("transcript archive failed: %v", err)
	}
}

func buildTranscript(prompt string, run *harness.RunResult) []byte {
	var b bytes.Buffer
	b.WriteString("# Prompt\n\n")
	b.WriteString(prompt)
	b.WriteString("\n\n# Stdout\n\n")
	b.WriteString(run.Stdout)
	if run.Stderr != "" {
		b.WriteString("\n\n# Stderr\n\n")
		b.WriteString(run.Stderr)
	}
	return b.Bytes()
}

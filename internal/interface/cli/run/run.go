// Package run implements the ralph run command, the entry point for
// the agent loop.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentloop/ralph/internal/application/loop"
	"github.com/agentloop/ralph/internal/interface/cli/common"
	"github.com/agentloop/ralph/internal/interface/external/harness"
)

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var (
		changeID       string
		module         string
		continueModule bool
		continueReady  bool

		harnessName string
		model       string
		stubScript  string

		promise           string
		minIterations     int
		maxIterations     int
		errorThreshold    int
		inactivitySec     int
		exitOnError       bool
		allowAll          bool
		noCommit          bool
		skipValidation    bool
		validationCommand string
		verbose           bool
		promptFile        string
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Drive an agent loop until the work is complete",
		Long: `Run invokes the configured harness repeatedly with a freshly built
prompt each iteration. The loop ends when the harness emits the
completion promise and the validation gate accepts it, when an error
limit is hit, or when the iteration ceiling is reached.

Targeting is optional: with no flags the prompt alone drives an
unscoped loop. --change drives one registered change, --module picks
the lowest eligible change in a module, and the continuation modes
drain eligible changes one after another.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.GetGlobalConfig()
			flags := cmd.Flags()

			// Explicit flags win over setting.json values.
			if !flags.Changed("harness") {
				harnessName = cfg.Harness()
			}
			if !flags.Changed("model") {
				model = cfg.Model()
			}
			if !flags.Changed("promise") {
				promise = cfg.CompletionPromise()
			}
			if !flags.Changed("min-iterations") {
				minIterations = cfg.MinIterations()
			}
			if !flags.Changed("max-iterations") {
				maxIterations = cfg.MaxIterations()
			}
			if !flags.Changed("error-threshold") {
				errorThreshold = cfg.ErrorThreshold()
			}
			if !flags.Changed("inactivity-timeout") {
				inactivitySec = cfg.InactivityTimeoutSec()
			}
			if !flags.Changed("exit-on-error") {
				exitOnError = cfg.ExitOnError()
			}
			if !flags.Changed("allow-all") {
				allowAll = cfg.AllowAll()
			}
			if !flags.Changed("no-commit") {
				noCommit = cfg.NoCommit()
			}
			if !flags.Changed("skip-validation") {
				skipValidation = cfg.SkipValidation()
			}

			prompt, err := assemblePrompt(args, promptFile)
			if err != nil {
				return err
			}

			opts := loop.Options{
				Prompt:            prompt,
				ChangeID:          changeID,
				Module:            module,
				ContinueModule:    continueModule,
				ContinueReady:     continueReady,
				Model:             model,
				CompletionPromise: promise,
				MinIterations:     minIterations,
				MaxIterations:     maxIterations,
				InactivityTimeout: time.Duration(inactivitySec) * time.Second,
				ErrorThreshold:    errorThreshold,
				ExitOnError:       exitOnError,
				AllowAll:          allowAll,
				NoCommit:          noCommit,
				SkipValidation:    skipValidation,
				ValidationCommand: validationCommand,
				Verbose:           verbose,
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			h, err := harness.New(harnessName, stubScript)
			if err != nil {
				return err
			}

			container, err := common.InitializeContainer(cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			ctx, cancel := SetupSignalHandler()
			defer cancel()

			runner, err := loop.NewRunner(opts, loop.Deps{
				Harness:          h,
				WorkItems:        container.GetWorkItemRepository(),
				Tasks:            container.GetTaskRepository(),
				Audit:            container.GetAuditSink(),
				Archive:          container.GetArchiveGateway(),
				Home:             cfg.Home(),
				WorktreesEnabled: cfg.WorktreesEnabled(),
				Stdout:           cmd.OutOrStdout(),
				Stderr:           cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			err = runner.Run(ctx)
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(os.Stderr, "\nRun cancelled.")
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&changeID, "change", "", "Target one registered change")
	flags.StringVar(&module, "module", "", "Scope the run to one module")
	flags.BoolVar(&continueModule, "continue-module", false, "Drain eligible changes in --module until the module is done")
	flags.BoolVar(&continueReady, "continue-ready", false, "Drain eligible changes across the whole project")
	flags.StringVar(&harnessName, "harness", "claude", "Harness to drive (opencode, claude, codex, copilot)")
	flags.StringVar(&model, "model", "", "Model override passed to the harness")
	flags.StringVar(&promise, "promise", "COMPLETE", "Completion token accepted inside <promise> tags")
	flags.IntVar(&minIterations, "min-iterations", 1, "Iterations required before a completion promise is honored")
	flags.IntVar(&maxIterations, "max-iterations", 0, "Iteration ceiling across the run (0 = unlimited)")
	flags.IntVar(&errorThreshold, "error-threshold", 10, "Non-retriable harness failures tolerated before aborting")
	flags.IntVar(&inactivitySec, "inactivity-timeout", 900, "Seconds of harness silence before the watchdog kills it")
	flags.BoolVar(&exitOnError, "exit-on-error", false, "Abort on the first non-retriable harness failure")
	flags.BoolVar(&allowAll, "allow-all", false, "Auto-approve harness tool use and permission prompts")
	flags.BoolVar(&noCommit, "no-commit", false, "Skip the per-iteration git commit")
	flags.BoolVar(&skipValidation, "skip-validation", false, "Accept a completion promise without running the validation gate")
	flags.StringVar(&validationCommand, "validation-command", "", "Extra shell command that must pass before completion is accepted")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Echo the full prompt sent to the harness")
	flags.StringVarP(&promptFile, "file", "f", "", "Read additional prompt text from a file")
	flags.StringVar(&stubScript, "stub-script", "", "JSON script for the stub harness (testing)")

	return cmd
}

// assemblePrompt merges the positional prompt with the optional prompt
// file, separated by a blank line. Either part may be empty; a change
// or module target supplies its own context when both are.
func assemblePrompt(args []string, promptFile string) (string, error) {
	parts := make([]string, 0, 2)
	if inline := strings.TrimSpace(strings.Join(args, " ")); inline != "" {
		parts = append(parts, inline)
	}
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

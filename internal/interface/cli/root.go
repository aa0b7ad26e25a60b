// Package cli assembles the ralph command tree. Configuration is
// loaded once in the root PersistentPreRunE and shared through the
// common package; subcommands never read setting.json themselves.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentloop/ralph/internal/application/loop"
	infraConfig "github.com/agentloop/ralph/internal/infra/config"
	"github.com/agentloop/ralph/internal/interface/cli/change"
	"github.com/agentloop/ralph/internal/interface/cli/common"
	"github.com/agentloop/ralph/internal/interface/cli/contextcmd"
	"github.com/agentloop/ralph/internal/interface/cli/initcmd"
	"github.com/agentloop/ralph/internal/interface/cli/run"
	"github.com/agentloop/ralph/internal/interface/cli/status"
	"github.com/agentloop/ralph/internal/interface/cli/task"
	"github.com/agentloop/ralph/internal/interface/cli/version"
)

// NewRoot creates the ralph root command
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ralph",
		Short: "Agent loop orchestrator",
		Long: `Ralph drives AI coding agents through an iterative loop until the
work is verifiably complete. Progress lives in files, commits, and the
work item database rather than the conversation, so every iteration
starts fresh against the real state of the repository.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration before any command runs.
			// Priority: setting.json under RALPH_HOME > defaults.
			startup := common.StartupLog()
			home := infraConfig.ResolveHome()
			startup.Debug("ralph home resolved to %s", home)

			cfg, err := infraConfig.LoadSettings(home)
			if err != nil {
				startup.Flush(common.LogLevelWarn, os.Stderr)
				return fmt.Errorf("load settings: %w", err)
			}
			startup.Debug("configuration source: %s", cfg.ConfigSource())

			level := common.ParseLogLevel(cfg.StderrLevel())
			logger := NewLogger(level, os.Stderr)
			InitializeLoggers(logger)
			startup.Flush(level, os.Stderr)

			common.SetGlobalConfig(cfg)
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.AddCommand(initcmd.NewCommand())
	cmd.AddCommand(run.NewCommand())
	cmd.AddCommand(status.NewCommand())
	cmd.AddCommand(contextcmd.NewContextCommand())
	cmd.AddCommand(change.NewChangeCommand())
	cmd.AddCommand(task.NewTaskCommand())
	cmd.AddCommand(version.NewCommand())
	return cmd
}

// Execute runs the root command and maps the outcome to a process
// exit code: 0 success, 1 aborted, 2 blocked, 130 cancelled.
func Execute() int {
	cmd := NewRoot()
	if err := cmd.Execute(); err != nil {
		// The loop prints its own banners; cancellation already logged
		// by the signal handler.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return loop.ExitCodeFor(err)
	}
	return 0
}

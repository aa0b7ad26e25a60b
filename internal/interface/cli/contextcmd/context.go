// Package contextcmd implements the ralph context commands. Pending
// context entries are injected into the next iteration's prompt and
// consumed once the harness exits cleanly.
package contextcmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/agentloop/ralph/internal/application/loop"
	"github.com/agentloop/ralph/internal/interface/cli/common"
)

// NewContextCommand creates the context command with its subcommands
func NewContextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage pending context for the next iteration",
		Long: `Context entries are appended verbatim to the next prompt under an
"Injected Context" section. Use them to steer a running loop without
editing the base prompt.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newClearCommand())
	return cmd
}

func newAddCommand() *cobra.Command {
	var changeID string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Queue a context entry for the next iteration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("context text is empty")
			}

			store := stateStore()
			key := stateKey(changeID)
			if err := store.AppendContext(key, text); err != nil {
				return fmt.Errorf("append context: %w", err)
			}

			state, err := store.LoadOrNew(key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued context for %s (%d pending).\n", key, len(state.PendingContext))
			return nil
		},
	}

	cmd.Flags().StringVar(&changeID, "change", "", "Change to queue context for (default: the unscoped loop)")
	return cmd
}

func newClearCommand() *cobra.Command {
	var changeID string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop all pending context entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := stateStore()
			key := stateKey(changeID)
			if err := store.ClearContext(key); err != nil {
				return fmt.Errorf("clear context: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared pending context for %s.\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&changeID, "change", "", "Change to clear context for (default: the unscoped loop)")
	return cmd
}

func stateStore() *loop.StateStore {
	return loop.NewStateStore(afero.NewOsFs(), common.GetGlobalConfig().Home())
}

func stateKey(changeID string) string {
	if changeID == "" {
		return loop.UnscopedTarget
	}
	return changeID
}

// Package change implements the ralph change commands: registering
// changes, listing them, and moving them through the work statuses the
// loop selects on.
package change

import "github.com/spf13/cobra"

// NewChangeCommand creates the change command with its subcommands
func NewChangeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Manage registered changes",
		Long: `Changes are the unit of work the loop targets. A change belongs to a
module, carries a work status (draft, ready, in-progress, paused,
complete), and owns the tasks the completion gate checks.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.AddCommand(NewRegisterCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewSetStatusCommand())
	return cmd
}

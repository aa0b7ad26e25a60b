package change

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentloop/ralph/internal/domain/model/workitem"
	"github.com/agentloop/ralph/internal/domain/repository"
	"github.com/agentloop/ralph/internal/interface/cli/common"
)

// NewSetStatusCommand creates the change set-status command
func NewSetStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <change-id> <status>",
		Short: "Set the work status of a change",
		Long: `Set-status moves a change between draft, ready, in-progress, paused,
and complete. The loop never changes work status itself; this command
and the task commands are how status advances.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changeID := args[0]
			status, err := workitem.ParseStatus(args[1])
			if err != nil {
				return err
			}

			container, err := common.InitializeContainer(common.GetGlobalConfig())
			if err != nil {
				return err
			}
			defer container.Close()

			ctx := context.Background()
			items := container.GetWorkItemRepository()

			previous, err := items.GetStatus(ctx, changeID)
			if err != nil {
				return fmt.Errorf("look up change %s: %w", changeID, err)
			}
			if err := items.UpdateStatus(ctx, changeID, status); err != nil {
				return fmt.Errorf("update status: %w", err)
			}

			common.EmitAudit(ctx, container.GetAuditSink(), &repository.AuditEvent{
				Kind:     repository.EventStatusChanged,
				ChangeID: changeID,
				From:     previous.String(),
				To:       status.String(),
				Detail:   "ralph change set-status",
			})

			fmt.Fprintf(cmd.OutOrStdout(), "Change %s: %s -> %s\n", changeID, previous, status)
			return nil
		},
	}
	return cmd
}

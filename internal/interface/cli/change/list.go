package change

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentloop/ralph/internal/domain/repository"
	"github.com/agentloop/ralph/internal/interface/cli/common"
)

// changeOutput is the JSON form of one listed change.
type changeOutput struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Module string `json:"module,omitempty"`
	Status string `json:"status"`
}

// NewListCommand creates the change list command
func NewListCommand() *cobra.Command {
	var (
		module     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered changes",
		Long:  "Display registered changes ordered by change ID, optionally scoped to one module.",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := common.InitializeContainer(common.GetGlobalConfig())
			if err != nil {
				return err
			}
			defer container.Close()

			items, err := container.GetWorkItemRepository().List(context.Background(), repository.Scope{Module: module})
			if err != nil {
				return fmt.Errorf("list changes: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				entries := make([]changeOutput, 0, len(items))
				for _, item := range items {
					entries = append(entries, changeOutput{
						ID:     item.ID,
						Name:   item.Name,
						Module: item.Module,
						Status: item.Status.String(),
					})
				}
				b, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
				return nil
			}

			if module != "" {
				fmt.Fprintf(out, "Changes in module %s (%d)\n", module, len(items))
			} else {
				fmt.Fprintf(out, "Changes (%d)\n", len(items))
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No changes registered.")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-12s %-12s %s\n", "ID", "MODULE", "STATUS", "NAME")
			for _, item := range items {
				fmt.Fprintf(out, "%-20s %-12s %-12s %s\n",
					item.ID,
					displayModule(item.Module),
					item.Status,
					truncateString(item.Name, 48),
				)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Use 'ralph status --change <id>' for loop state.")
			return nil
		},
	}

	cmd.Flags().StringVar(&module, "module", "", "Only list changes in this module")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

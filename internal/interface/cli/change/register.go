package change

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentloop/ralph/internal/domain/model/task"
	"github.com/agentloop/ralph/internal/domain/model/workitem"
	"github.com/agentloop/ralph/internal/domain/repository"
	"github.com/agentloop/ralph/internal/interface/cli/common"
)

// NewRegisterCommand creates the change register command
func NewRegisterCommand() *cobra.Command {
	var (
		id           string
		module       string
		name         string
		manifestPath string
		ready        bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a change",
		Long: `Register adds a change to the work item database, either from flags
or from a YAML manifest carrying id, module, title, and tasks. Changes
start in draft; pass --ready to make them eligible for selection
immediately.`,
		Example: `  # Register from flags
  ralph change register --id add-auth --module core --name "Add authentication" --ready

  # Register from a manifest
  ralph change register --file change.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if manifestPath != "" && id != "" {
				return errors.New("--file and --id are mutually exclusive")
			}

			var m *Manifest
			if manifestPath != "" {
				loaded, err := LoadManifest(manifestPath)
				if err != nil {
					return err
				}
				m = loaded
			} else {
				if id == "" {
					return errors.New("either --id or --file is required")
				}
				m = &Manifest{ID: id, Module: module, Title: name}
			}

			item, err := workitem.NewWorkItem(m.ID, m.Title, m.Module)
			if err != nil {
				return err
			}
			if ready {
				if err := item.UpdateStatus(workitem.StatusReady); err != nil {
					return err
				}
			}

			container, err := common.InitializeContainer(common.GetGlobalConfig())
			if err != nil {
				return err
			}
			defer container.Close()

			ctx := context.Background()
			if err := container.GetWorkItemRepository().Register(ctx, item); err != nil {
				return fmt.Errorf("register change: %w", err)
			}
			for _, mt := range m.Tasks {
				t, err := task.NewTask(m.ID, mt.ID, mt.Title)
				if err != nil {
					return err
				}
				if err := container.GetTaskRepository().Add(ctx, t); err != nil {
					return fmt.Errorf("add task %s: %w", mt.ID, err)
				}
			}

			common.EmitAudit(ctx, container.GetAuditSink(), &repository.AuditEvent{
				Kind:     repository.EventStatusChanged,
				ChangeID: item.ID,
				To:       item.Status.String(),
				Detail:   "change registered",
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Registered change %s (module: %s, status: %s)", item.ID, displayModule(item.Module), item.Status)
			if len(m.Tasks) > 0 {
				fmt.Fprintf(out, " with %d tasks", len(m.Tasks))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Change ID (unique across the project)")
	cmd.Flags().StringVar(&module, "module", "", "Module the change belongs to")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable change name")
	cmd.Flags().StringVarP(&manifestPath, "file", "f", "", "YAML manifest with id, module, title, and tasks")
	cmd.Flags().BoolVar(&ready, "ready", false, "Register as ready instead of draft")
	return cmd
}

func displayModule(module string) string {
	if module == "" {
		return "-"
	}
	return module
}
